package license

import (
	"context"
	"net/http"
)

// Response is an authority response as delivered by a Transport. Body
// holds the exact bytes received.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends a validate-key request for licenseKey. Errors that mean
// the authority could not be reached must wrap errors.ErrConnectivity.
type Transport interface {
	Validate(ctx context.Context, licenseKey string) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, licenseKey string) (*Response, error)

// Validate implements Transport.
func (f TransportFunc) Validate(ctx context.Context, licenseKey string) (*Response, error) {
	return f(ctx, licenseKey)
}
