package authority

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/keygen-sh/example-go-offline-validation-caching/internal/config"
	apperrors "github.com/keygen-sh/example-go-offline-validation-caching/internal/errors"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/license"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/security"
)

const (
	// MediaType is the JSON:API media type the authority speaks.
	MediaType = "application/vnd.api+json"

	// MaxResponseSize bounds the body read from the authority.
	MaxResponseSize = 1 << 20

	validatePath = "/v1/accounts/%s/licenses/actions/validate-key"
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	AccountID string
	Timeout   time.Duration
	RPS       float64
	Burst     int
	UserAgent string

	// PinnedSPKI restricts the authority's TLS identity. See package security.
	PinnedSPKI []string
	// RootCAs replaces the system roots when set.
	RootCAs *x509.CertPool
}

// ConfigFrom derives the client settings from application configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:    cfg.AuthorityURL(),
		AccountID:  cfg.AccountID,
		Timeout:    cfg.Timeout,
		RPS:        cfg.RPS,
		Burst:      cfg.Burst,
		UserAgent:  config.AppName + "/" + config.AppVersion,
		PinnedSPKI: cfg.PinnedSPKI,
	}
}

// Client posts validate-key requests to the authority. It implements
// license.Transport.
type Client struct {
	httpClient *http.Client
	endpoint   string
	limiter    *rate.Limiter
	userAgent  string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client for the account in cfg. A zero RPS disables
// client-side rate limiting.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.AccountID == "" {
		return nil, errors.New("authority: account id is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("authority: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultAuthorityTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.RootCAs != nil {
		transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12, RootCAs: cfg.RootCAs}
	}
	if len(cfg.PinnedSPKI) > 0 {
		pinner, err := security.NewCertificatePinner(cfg.PinnedSPKI)
		if err != nil {
			return nil, fmt.Errorf("authority: %w", err)
		}
		transport = pinner.Transport(transport)
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		endpoint:  base.String() + fmt.Sprintf(validatePath, url.PathEscape(cfg.AccountID)),
		userAgent: cfg.UserAgent,
		logger:    slog.Default(),
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "authority_client"))
	return c, nil
}

// Endpoint returns the validate-key URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type validateRequest struct {
	Meta struct {
		Key string `json:"key"`
	} `json:"meta"`
}

// Validate implements license.Transport. Non-2xx responses carrying a JSON
// document are returned as responses, since the authority reports rejected
// keys that way.
func (c *Client) Validate(ctx context.Context, licenseKey string) (*license.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classify(ctx, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	var payload validateRequest
	payload.Meta.Key = licenseKey
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", MediaType)
	req.Header.Set("Accept", MediaType)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = classify(ctx, fmt.Errorf("HTTP request failed: %w", err))
		c.logger.WarnContext(ctx, "authority request failed",
			slog.String("reason", Reason(err)),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("failed to read response body: %w", err))
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", apperrors.ErrMalformedResponse, MaxResponseSize)
	}

	c.logger.DebugContext(ctx, "authority responded",
		slog.Int("status_code", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", time.Since(start)))

	// Gateways answer 5xx with HTML when the authority itself is down.
	if resp.StatusCode >= http.StatusInternalServerError && !json.Valid(body) {
		return nil, fmt.Errorf("%w: HTTP %d from %s", apperrors.ErrConnectivity, resp.StatusCode, req.URL.Host)
	}

	return &license.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// classify wraps err with ErrConnectivity when it means the authority could
// not be reached. Cancellation by the caller is never a connectivity error.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return err
	}
	if reason := Reason(err); reason != "" && reason != "other" {
		return fmt.Errorf("%w: %w", apperrors.ErrConnectivity, err)
	}
	return err
}

// Reason names the class of a transport failure for logs and metrics. It
// returns "other" for errors that do not mean the authority was unreachable.
func Reason(err error) string {
	if err == nil {
		return ""
	}

	var (
		dnsErr      *net.DNSError
		netErr      net.Error
		unknownCA   x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidCert x509.CertificateInvalidError
		certVerify  *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		opErr       *net.OpError
	)

	switch {
	case errors.Is(err, context.Canceled):
		return "other"
	case errors.As(err, &dnsErr):
		return "dns_error"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection_refused"
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return "connection_reset"
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return "unreachable"
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		strings.Contains(err.Error(), "would exceed context deadline"):
		return "timeout"
	case errors.As(err, &certVerify), errors.As(err, &unknownCA),
		errors.As(err, &hostnameErr), errors.As(err, &invalidCert),
		errors.As(err, &recordErr), errors.Is(err, security.ErrPinMismatch):
		return "tls_error"
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return "connection_closed"
	case errors.As(err, &opErr):
		return "network_error"
	case errors.Is(err, apperrors.ErrConnectivity):
		return "server_unavailable"
	default:
		return "other"
	}
}
