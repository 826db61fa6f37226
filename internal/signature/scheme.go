package signature

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/keygen-sh/example-go-offline-validation-caching/internal/errors"
)

// Scheme names a verification scheme.
type Scheme string

const (
	// SchemeRSASHA256 verifies an RSA signature over the whole response body.
	SchemeRSASHA256 Scheme = "rsa-sha256"
	// SchemeEd25519 verifies an HTTP message signature made with Ed25519.
	SchemeEd25519 Scheme = "ed25519"
)

// ParseScheme converts a configuration value into a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case SchemeRSASHA256:
		return SchemeRSASHA256, nil
	case SchemeEd25519:
		return SchemeEd25519, nil
	default:
		return "", fmt.Errorf("unsupported signature scheme %q", s)
	}
}

// Verification failures. Every one of them means "not authentic".
var (
	// ErrMissingPrecondition is returned when the body or a proof component is absent.
	ErrMissingPrecondition = errors.New("signature precondition missing")
	// ErrMalformedProof is returned when proof material cannot be decoded.
	ErrMalformedProof = errors.New("malformed signature proof")
	// ErrSignatureMismatch is returned when the cryptographic check fails.
	ErrSignatureMismatch = errors.New("signature mismatch")
	// ErrSchemeMismatch is returned when proof was produced under another scheme.
	ErrSchemeMismatch = errors.New("signature scheme mismatch")
)

// Proof is the authenticity material stored next to a response body.
// The rsa-sha256 scheme uses Signature; the ed25519 scheme uses Params,
// Digest and Date.
type Proof struct {
	Signature string            `json:"signature,omitempty"`
	Params    map[string]string `json:"signature_params,omitempty"`
	Digest    string            `json:"digest,omitempty"`
	Date      string            `json:"date,omitempty"`
}

// IsZero reports whether the proof carries no material at all.
func (p Proof) IsZero() bool {
	return p.Signature == "" && len(p.Params) == 0 && p.Digest == "" && p.Date == ""
}

// Verifier checks responses under one scheme with one trusted key.
type Verifier interface {
	// Scheme returns the scheme this verifier implements.
	Scheme() Scheme
	// ExtractProof pulls the scheme's proof material from response headers.
	ExtractProof(header http.Header) (Proof, error)
	// Verify returns nil only when body is authentic under proof.
	Verify(proof Proof, body []byte) error
}

// Valid is the boolean form of v.Verify, for callers that only need a yes
// or no. Verify's error carries the failure class for FailureReason.
func Valid(v Verifier, proof Proof, body []byte) bool {
	return v.Verify(proof, body) == nil
}

// FailureReason classifies a verification error for logs and metrics.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingPrecondition):
		return "missing_precondition"
	case errors.Is(err, ErrMalformedProof):
		return "malformed_proof"
	case errors.Is(err, ErrSchemeMismatch):
		return "scheme_mismatch"
	case errors.Is(err, ErrSignatureMismatch):
		return "signature_mismatch"
	default:
		return "unknown"
	}
}

// Config carries the trusted key material for New.
type Config struct {
	Scheme    Scheme
	PublicKey string // PEM RSA public key, rsa-sha256
	VerifyKey string // hex, base64 or PEM Ed25519 public key, ed25519
	AccountID string
	Host      string
}

// New builds the Verifier for cfg.Scheme. Missing or unparsable key material
// is a deployment error and is reported as ErrInvalidKeyMaterial.
func New(cfg Config) (Verifier, error) {
	switch cfg.Scheme {
	case SchemeRSASHA256:
		pub, err := ParseRSAPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		return NewRSAVerifier(pub), nil
	case SchemeEd25519:
		key, err := ParseEd25519PublicKey(cfg.VerifyKey)
		if err != nil {
			return nil, err
		}
		if cfg.AccountID == "" {
			return nil, fmt.Errorf("%w: account id is required for ed25519 request signatures", apperrors.ErrInvalidKeyMaterial)
		}
		var opts []Ed25519Option
		if cfg.Host != "" {
			opts = append(opts, WithHost(cfg.Host))
		}
		return NewEd25519HTTPVerifier(key, cfg.AccountID, opts...), nil
	default:
		return nil, fmt.Errorf("%w: unsupported signature scheme %q", apperrors.ErrInvalidKeyMaterial, cfg.Scheme)
	}
}
