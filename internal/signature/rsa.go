package signature

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// HeaderSignature carries the whole-body signature, and on the ed25519
// scheme the legacy location of the structured signature header.
const HeaderSignature = "X-Signature"

// RSAVerifier verifies RSA PKCS#1 v1.5 SHA-256 signatures over the raw body.
type RSAVerifier struct {
	pub *rsa.PublicKey
}

// NewRSAVerifier creates a verifier trusting pub.
func NewRSAVerifier(pub *rsa.PublicKey) *RSAVerifier {
	return &RSAVerifier{pub: pub}
}

// Scheme implements Verifier.
func (v *RSAVerifier) Scheme() Scheme {
	return SchemeRSASHA256
}

// ExtractProof reads the base64 signature from the X-Signature header.
func (v *RSAVerifier) ExtractProof(header http.Header) (Proof, error) {
	sig := strings.TrimSpace(header.Get(HeaderSignature))
	if sig == "" {
		return Proof{}, fmt.Errorf("%w: %s header absent", ErrMissingPrecondition, HeaderSignature)
	}
	return Proof{Signature: sig}, nil
}

// Verify checks proof.Signature against SHA-256(body).
func (v *RSAVerifier) Verify(proof Proof, body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("%w: response body is missing", ErrMissingPrecondition)
	}
	if proof.Signature == "" {
		return fmt.Errorf("%w: signature is missing", ErrMissingPrecondition)
	}
	if v.pub == nil {
		return fmt.Errorf("%w: no trusted key", ErrMissingPrecondition)
	}

	sig, err := base64.StdEncoding.DecodeString(proof.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not base64: %v", ErrMalformedProof, err)
	}

	digest := sha256.Sum256(body)
	if err := rsa.VerifyPKCS1v15(v.pub, crypto.SHA256, digest[:], sig); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	return nil
}
