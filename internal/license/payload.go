package license

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/keygen-sh/example-go-offline-validation-caching/internal/errors"
)

// validationDocument is the part of a validate-key response this package
// reads. Anything else in the body is ignored but kept verbatim in the cache.
type validationDocument struct {
	Meta   *validationMeta `json:"meta"`
	Errors []apiError      `json:"errors"`
	Data   *struct {
		ID         string `json:"id"`
		Attributes struct {
			Key string `json:"key"`
		} `json:"attributes"`
	} `json:"data"`
}

type validationMeta struct {
	Valid    bool   `json:"valid"`
	Code     string `json:"code"`
	Constant string `json:"constant"`
	Ts       string `json:"ts"`
	Detail   string `json:"detail"`
}

type apiError struct {
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// parseDocument decodes body. A body that is neither a rejection nor carries
// meta is malformed.
func parseDocument(body []byte) (*validationDocument, error) {
	var doc validationDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedResponse, err)
	}
	if doc.Errors == nil && doc.Meta == nil {
		return nil, fmt.Errorf("%w: neither meta nor errors present", apperrors.ErrMalformedResponse)
	}
	return &doc, nil
}

// rejected reports whether the authority refused the request. An explicit
// empty errors list still counts.
func (d *validationDocument) rejected() bool {
	return d.Errors != nil
}

// rejection is the outcome for a rejected request.
func (d *validationDocument) rejection() Outcome {
	o := Outcome{Origin: OriginOnline}
	if len(d.Errors) > 0 {
		o.Code = d.Errors[0].Code
	}
	return o
}

// outcome maps meta to an Outcome. Older responses carry the result code
// in "constant" rather than "code".
func (d *validationDocument) outcome(origin Origin) Outcome {
	code := d.Meta.Code
	if code == "" {
		code = d.Meta.Constant
	}
	return Outcome{
		Valid:     d.Meta.Valid,
		Code:      code,
		Timestamp: d.Meta.Ts,
		Origin:    origin,
	}
}

// licenseKey returns the key the document was issued for, if it names one.
func (d *validationDocument) licenseKey() string {
	if d.Data == nil {
		return ""
	}
	return d.Data.Attributes.Key
}
