package security

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrPinMismatch is returned by the TLS handshake when no certificate in
// the verified chain matches a pin.
var ErrPinMismatch = errors.New("certificate pin verification failed")

// CertificatePinner checks peer certificates against a set of SPKI hashes.
type CertificatePinner struct {
	pins map[string]struct{}
}

// NewCertificatePinner parses pins. Each pin is a SHA-256 SPKI hash in hex
// or standard base64, optionally prefixed with "sha256/".
func NewCertificatePinner(pins []string) (*CertificatePinner, error) {
	if len(pins) == 0 {
		return nil, errors.New("at least one certificate pin is required")
	}
	cp := &CertificatePinner{pins: make(map[string]struct{}, len(pins))}
	for _, pin := range pins {
		normalized, err := normalizePin(pin)
		if err != nil {
			return nil, err
		}
		cp.pins[normalized] = struct{}{}
	}
	return cp, nil
}

func normalizePin(pin string) (string, error) {
	pin = strings.TrimPrefix(strings.TrimSpace(pin), "sha256/")
	if len(pin) == hex.EncodedLen(sha256.Size) {
		if _, err := hex.DecodeString(pin); err == nil {
			return strings.ToLower(pin), nil
		}
	}
	raw, err := base64.StdEncoding.DecodeString(pin)
	if err != nil || len(raw) != sha256.Size {
		return "", fmt.Errorf("certificate pin %q must be a SHA-256 hash in hex or base64", pin)
	}
	return hex.EncodeToString(raw), nil
}

// Len returns the number of distinct pins.
func (cp *CertificatePinner) Len() int {
	return len(cp.pins)
}

// VerifyPeerCertificate implements tls.Config.VerifyPeerCertificate.
func (cp *CertificatePinner) VerifyPeerCertificate(_ [][]byte, verifiedChains [][]*x509.Certificate) error {
	for _, chain := range verifiedChains {
		for _, cert := range chain {
			if _, ok := cp.pins[SPKIHash(cert)]; ok {
				return nil
			}
		}
	}
	if len(verifiedChains) == 0 || len(verifiedChains[0]) == 0 {
		return fmt.Errorf("%w: no verified certificate chains", ErrPinMismatch)
	}
	return fmt.Errorf("%w for %s", ErrPinMismatch, verifiedChains[0][0].Subject.CommonName)
}

// Transport returns a copy of base that enforces the pins. base's TLS
// settings, such as RootCAs, are kept.
func (cp *CertificatePinner) Transport(base *http.Transport) *http.Transport {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport)
	}
	t := base.Clone()
	if t.TLSClientConfig == nil {
		t.TLSClientConfig = &tls.Config{}
	}
	if t.TLSClientConfig.MinVersion < tls.VersionTLS12 {
		t.TLSClientConfig.MinVersion = tls.VersionTLS12
	}
	t.TLSClientConfig.VerifyPeerCertificate = cp.VerifyPeerCertificate
	return t
}

// SPKIHash returns the hex SHA-256 hash of cert's SubjectPublicKeyInfo.
func SPKIHash(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return hex.EncodeToString(sum[:])
}
