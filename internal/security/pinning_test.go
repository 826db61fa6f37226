package security

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCertificatePinner(t *testing.T) {
	hexPin := strings.Repeat("ab", 32)
	sum := sha256.Sum256([]byte("spki"))
	b64Pin := base64.StdEncoding.EncodeToString(sum[:])

	tests := []struct {
		name    string
		pins    []string
		wantLen int
		wantErr bool
	}{
		{name: "hex", pins: []string{hexPin}, wantLen: 1},
		{name: "upper hex dedupes", pins: []string{hexPin, strings.ToUpper(hexPin)}, wantLen: 1},
		{name: "base64", pins: []string{b64Pin}, wantLen: 1},
		{name: "hpkp prefix", pins: []string{"sha256/" + b64Pin, hexPin}, wantLen: 2},
		{name: "empty list", pins: nil, wantErr: true},
		{name: "short hex", pins: []string{"abcd"}, wantErr: true},
		{name: "wrong length base64", pins: []string{base64.StdEncoding.EncodeToString([]byte("short"))}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp, err := NewCertificatePinner(tt.pins)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, cp.Len())
		})
	}
}

func newPinnedClient(t *testing.T, srv *httptest.Server, pin string) *http.Client {
	t.Helper()
	cp, err := NewCertificatePinner([]string{pin})
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	base := &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool}}
	return &http.Client{Transport: cp.Transport(base)}
}

func TestCertificatePinner_Handshake(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	t.Run("matching pin", func(t *testing.T) {
		client := newPinnedClient(t, srv, SPKIHash(srv.Certificate()))
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("other pin", func(t *testing.T) {
		client := newPinnedClient(t, srv, strings.Repeat("0", 64))
		_, err := client.Get(srv.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPinMismatch)
	})
}

func TestCertificatePinner_NoChains(t *testing.T) {
	cp, err := NewCertificatePinner([]string{strings.Repeat("0", 64)})
	require.NoError(t, err)
	assert.ErrorIs(t, cp.VerifyPeerCertificate(nil, nil), ErrPinMismatch)
}

func TestCertificatePinner_Transport(t *testing.T) {
	cp, err := NewCertificatePinner([]string{strings.Repeat("0", 64)})
	require.NoError(t, err)

	base := &http.Transport{TLSClientConfig: &tls.Config{ServerName: "licensing.example.com"}}
	pinned := cp.Transport(base)

	assert.Nil(t, base.TLSClientConfig.VerifyPeerCertificate)
	assert.NotNil(t, pinned.TLSClientConfig.VerifyPeerCertificate)
	assert.Equal(t, "licensing.example.com", pinned.TLSClientConfig.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS12), pinned.TLSClientConfig.MinVersion)

	assert.NotNil(t, cp.Transport(nil).TLSClientConfig.VerifyPeerCertificate)
}
