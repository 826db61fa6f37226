package errors

import (
	"errors"
)

// Validation pipeline errors. ErrConnectivity is recovered inside the
// validator and never reaches its callers.
var (
	// ErrConnectivity marks a transport failure that means the authority
	// could not be reached. It triggers the offline fallback.
	ErrConnectivity = errors.New("license authority unreachable")

	// ErrMalformedResponse marks a reachable authority whose answer is not
	// a usable validation document.
	ErrMalformedResponse = errors.New("malformed validation response")

	// ErrInvalidKeyMaterial marks missing or unparsable trusted key material.
	ErrInvalidKeyMaterial = errors.New("invalid key material")

	// ErrEmptyLicenseKey is returned when validation is requested without a key.
	ErrEmptyLicenseKey = errors.New("license key is required")

	// ErrInvalidCacheKey is returned by stores for keys that cannot name a record.
	ErrInvalidCacheKey = errors.New("invalid cache key")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
