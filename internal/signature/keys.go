package signature

import (
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"

	apperrors "github.com/keygen-sh/example-go-offline-validation-caching/internal/errors"
)

const minRSAKeyBits = 2048

// ParseRSAPublicKey parses a PEM encoded RSA public key in PKIX or PKCS#1
// form. Literal "\n" sequences are accepted so the key can live in a single
// environment variable.
func ParseRSAPublicKey(s string) (*rsa.PublicKey, error) {
	s = normalizePEM(s)
	if s == "" {
		return nil, fmt.Errorf("%w: rsa public key is empty", apperrors.ErrInvalidKeyMaterial)
	}

	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, fmt.Errorf("%w: rsa public key is not PEM encoded", apperrors.ErrInvalidKeyMaterial)
	}

	var pub *rsa.PublicKey
	switch block.Type {
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidKeyMaterial, err)
		}
		rsaPub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: PEM block holds a %T, expected RSA", apperrors.ErrInvalidKeyMaterial, parsed)
		}
		pub = rsaPub
	case "RSA PUBLIC KEY":
		parsed, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidKeyMaterial, err)
		}
		pub = parsed
	default:
		return nil, fmt.Errorf("%w: unexpected PEM block %q", apperrors.ErrInvalidKeyMaterial, block.Type)
	}

	if pub.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key is %d bits, need at least %d", apperrors.ErrInvalidKeyMaterial, pub.N.BitLen(), minRSAKeyBits)
	}
	return pub, nil
}

// ParseEd25519PublicKey accepts a hex encoded key (the authority's verify
// key format), a base64 encoded key, or a PEM encoded PKIX key.
func ParseEd25519PublicKey(s string) (ed25519.PublicKey, error) {
	s = normalizePEM(s)
	if s == "" {
		return nil, fmt.Errorf("%w: ed25519 verify key is empty", apperrors.ErrInvalidKeyMaterial)
	}

	if strings.HasPrefix(s, "-----BEGIN") {
		block, _ := pem.Decode([]byte(s))
		if block == nil {
			return nil, fmt.Errorf("%w: ed25519 verify key is not valid PEM", apperrors.ErrInvalidKeyMaterial)
		}
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidKeyMaterial, err)
		}
		key, ok := parsed.(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: PEM block holds a %T, expected Ed25519", apperrors.ErrInvalidKeyMaterial, parsed)
		}
		return key, nil
	}

	if raw, err := hex.DecodeString(s); err == nil && len(raw) == ed25519.PublicKeySize {
		return ed25519.PublicKey(raw), nil
	}
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil && len(raw) == ed25519.PublicKeySize {
		return ed25519.PublicKey(raw), nil
	}
	return nil, fmt.Errorf("%w: ed25519 verify key must be %d bytes encoded as hex, base64 or PEM", apperrors.ErrInvalidKeyMaterial, ed25519.PublicKeySize)
}

func normalizePEM(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `\n`, "\n"))
}
