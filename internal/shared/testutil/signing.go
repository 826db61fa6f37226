package testutil

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestHost is the authority host used when signing test responses.
const TestHost = "api.keygen.sh"

// SignedResponse is an authority response as a transport would hand it over.
type SignedResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RSAKeys is a throwaway RSA key pair.
type RSAKeys struct {
	Private *rsa.PrivateKey
}

// NewRSAKeys generates a 2048 bit key pair.
func NewRSAKeys(t testing.TB) *RSAKeys {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &RSAKeys{Private: priv}
}

// PublicPEM returns the public key as a PKIX "PUBLIC KEY" block.
func (k *RSAKeys) PublicPEM(t testing.TB) string {
	t.Helper()
	return EncodeRSAPublicPEM(t, &k.Private.PublicKey)
}

// Sign returns the base64 PKCS#1 v1.5 SHA-256 signature of body.
func (k *RSAKeys) Sign(t testing.TB, body []byte) string {
	t.Helper()
	sum := sha256.Sum256(body)
	sig, err := rsa.SignPKCS1v15(rand.Reader, k.Private, crypto.SHA256, sum[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

// SignResponse builds a 200 response carrying body and its X-Signature.
func (k *RSAKeys) SignResponse(t testing.TB, body []byte) *SignedResponse {
	t.Helper()
	h := http.Header{}
	h.Set("Content-Type", "application/vnd.api+json")
	h.Set("X-Signature", k.Sign(t, body))
	return &SignedResponse{StatusCode: http.StatusOK, Header: h, Body: body}
}

// Ed25519Keys is a throwaway Ed25519 key pair.
type Ed25519Keys struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// NewEd25519Keys generates a key pair.
func NewEd25519Keys(t testing.TB) *Ed25519Keys {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &Ed25519Keys{Public: pub, Private: priv}
}

// VerifyKeyHex returns the public key in the authority's hex format.
func (k *Ed25519Keys) VerifyKeyHex() string {
	return hex.EncodeToString(k.Public)
}

// Digest returns the Digest header value for body.
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return "sha-256=" + base64.StdEncoding.EncodeToString(sum[:])
}

// SigningMessage returns the lines the authority signs for a validate-key
// response.
func SigningMessage(accountID, host, date string, body []byte) []byte {
	return []byte(strings.Join([]string{
		fmt.Sprintf("(request-target): post /v1/accounts/%s/licenses/actions/validate-key", accountID),
		"host: " + host,
		"date: " + date,
		"digest: " + Digest(body),
	}, "\n"))
}

// SignHTTPResponse builds a 200 response whose Keygen-Signature, Digest and
// Date headers authenticate body for accountID.
func (k *Ed25519Keys) SignHTTPResponse(t testing.TB, accountID string, body []byte, at time.Time) *SignedResponse {
	t.Helper()
	date := at.UTC().Format(http.TimeFormat)
	sig := ed25519.Sign(k.Private, SigningMessage(accountID, TestHost, date, body))

	h := http.Header{}
	h.Set("Content-Type", "application/vnd.api+json")
	h.Set("Date", date)
	h.Set("Digest", Digest(body))
	h.Set("Keygen-Signature", fmt.Sprintf(
		`keyid="%s", algorithm="ed25519", signature="%s", headers="(request-target) host date digest"`,
		accountID, base64.StdEncoding.EncodeToString(sig),
	))
	return &SignedResponse{StatusCode: http.StatusOK, Header: h, Body: body}
}

// ValidBody returns a validate-key payload for key with the given outcome.
func ValidBody(key string, valid bool, code, ts string) []byte {
	return []byte(fmt.Sprintf(
		`{"meta":{"ts":%q,"valid":%t,"detail":"test","code":%q},"data":{"id":"lic-1","type":"licenses","attributes":{"key":%q}}}`,
		ts, valid, code, key,
	))
}

// ErrorBody returns an error payload carrying the given codes.
func ErrorBody(codes ...string) []byte {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprintf(`{"title":"Bad request","code":%q}`, c)
	}
	return []byte(`{"errors":[` + strings.Join(parts, ",") + `]}`)
}

// EncodeRSAPublicPEM encodes pub as a PKIX "PUBLIC KEY" block.
func EncodeRSAPublicPEM(t testing.TB, pub *rsa.PublicKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}
