package signature

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// Response headers read by the ed25519 scheme.
const (
	HeaderKeygenSignature = "Keygen-Signature"
	HeaderDigest          = "Digest"
	HeaderDate            = "Date"
)

// DefaultHost is the authority host named in the signed message.
const DefaultHost = "api.keygen.sh"

const validatePathFormat = "/v1/accounts/%s/licenses/actions/validate-key"

// Ed25519HTTPVerifier verifies HTTP message signatures over the
// validate-key response, reconstructing the signed lines itself.
type Ed25519HTTPVerifier struct {
	key       ed25519.PublicKey
	accountID string
	host      string
}

// Ed25519Option configures an Ed25519HTTPVerifier.
type Ed25519Option func(*Ed25519HTTPVerifier)

// WithHost overrides the host line of the signed message.
func WithHost(host string) Ed25519Option {
	return func(v *Ed25519HTTPVerifier) {
		v.host = host
	}
}

// NewEd25519HTTPVerifier creates a verifier trusting key for responses to
// accountID's validate-key endpoint.
func NewEd25519HTTPVerifier(key ed25519.PublicKey, accountID string, opts ...Ed25519Option) *Ed25519HTTPVerifier {
	v := &Ed25519HTTPVerifier{
		key:       key,
		accountID: accountID,
		host:      DefaultHost,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Scheme implements Verifier.
func (v *Ed25519HTTPVerifier) Scheme() Scheme {
	return SchemeEd25519
}

// ExtractProof reads the signature header (Keygen-Signature, falling back to
// X-Signature), the Digest header and the Date header.
func (v *Ed25519HTTPVerifier) ExtractProof(header http.Header) (Proof, error) {
	raw := header.Get(HeaderKeygenSignature)
	if raw == "" {
		raw = header.Get(HeaderSignature)
	}
	if raw == "" {
		return Proof{}, fmt.Errorf("%w: signature header absent", ErrMissingPrecondition)
	}

	params, err := ParseSignatureHeader(raw)
	if err != nil {
		return Proof{}, err
	}

	proof := Proof{
		Params: params,
		Digest: strings.TrimSpace(header.Get(HeaderDigest)),
		Date:   strings.TrimSpace(header.Get(HeaderDate)),
	}
	if proof.Digest == "" || proof.Date == "" {
		return Proof{}, fmt.Errorf("%w: digest or date header absent", ErrMissingPrecondition)
	}
	return proof, nil
}

// Verify rebuilds the signed message from body and proof.Date and checks the
// signature parameter against it.
func (v *Ed25519HTTPVerifier) Verify(proof Proof, body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("%w: response body is missing", ErrMissingPrecondition)
	}
	if len(proof.Params) == 0 || proof.Digest == "" || proof.Date == "" {
		return fmt.Errorf("%w: signature, digest and date are all required", ErrMissingPrecondition)
	}
	if len(v.key) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: no trusted key", ErrMissingPrecondition)
	}

	encoded, ok := proof.Params["signature"]
	if !ok || encoded == "" {
		return fmt.Errorf("%w: signature parameter absent", ErrMissingPrecondition)
	}
	if alg, ok := proof.Params["algorithm"]; ok && !strings.EqualFold(alg, "ed25519") {
		return fmt.Errorf("%w: algorithm %q", ErrSchemeMismatch, alg)
	}

	sig, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: signature is not base64: %v", ErrMalformedProof, err)
	}

	digest := BodyDigest(body)
	if proof.Digest != digest {
		return fmt.Errorf("%w: stored digest does not match body", ErrSignatureMismatch)
	}

	msg := v.SigningMessage(proof.Date, body)
	if !ed25519.Verify(v.key, msg, sig) {
		return ErrSignatureMismatch
	}
	return nil
}

// SigningMessage returns the exact bytes the authority signs for a
// validate-key response carrying body and the given Date header.
func (v *Ed25519HTTPVerifier) SigningMessage(date string, body []byte) []byte {
	lines := []string{
		"(request-target): post " + fmt.Sprintf(validatePathFormat, v.accountID),
		"host: " + v.host,
		"date: " + date,
		"digest: " + BodyDigest(body),
	}
	return []byte(strings.Join(lines, "\n"))
}

// BodyDigest returns the Digest header value for body.
func BodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return "sha-256=" + base64.StdEncoding.EncodeToString(sum[:])
}
