package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVerifyKey = "e8601e48b69383ba520245fd07971e983d06d22c4257cfd82304601479cee788"

// clearEnv unsets every KEYGEN_ variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, EnvPrefix+"_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with minimal env",
			env: map[string]string{
				"KEYGEN_ACCOUNT_ID": "acct",
				"KEYGEN_VERIFY_KEY": testVerifyKey,
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "acct", cfg.AccountID)
				assert.Equal(t, "ed25519", cfg.Scheme)
				assert.Equal(t, DefaultHost, cfg.Host)
				assert.Equal(t, "https://api.keygen.sh", cfg.AuthorityURL())
				assert.Equal(t, CacheBackendFile, cfg.Cache.Backend)
				assert.Equal(t, DefaultCacheDir, cfg.Cache.Dir)
				assert.Equal(t, 10*time.Second, cfg.Timeout)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Zero(t, cfg.RevalidateInterval)
			},
		},
		{
			name: "nested env sections",
			env: map[string]string{
				"KEYGEN_ACCOUNT_ID":          "acct",
				"KEYGEN_SCHEME":              "RSA-SHA256",
				"KEYGEN_PUBLIC_KEY":          "-----BEGIN PUBLIC KEY-----\\n...",
				"KEYGEN_CACHE_BACKEND":       "redis",
				"KEYGEN_CACHE_REDIS_URL":     "redis://localhost:6379/0",
				"KEYGEN_LOGGING_LEVEL":       "DEBUG",
				"KEYGEN_SERVER_PORT":         "9000",
				"KEYGEN_REVALIDATE_INTERVAL": "15m",
				"KEYGEN_LICENSE_KEY":         "KEY-1",
				"KEYGEN_BASE_URL":            "http://127.0.0.1:8081/",
				"KEYGEN_PINNED_SPKI":         "aaaa,bbbb",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "rsa-sha256", cfg.Scheme)
				assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
				assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, 15*time.Minute, cfg.RevalidateInterval)
				assert.Equal(t, "KEY-1", cfg.LicenseKey)
				assert.Equal(t, "http://127.0.0.1:8081", cfg.AuthorityURL())
				assert.Equal(t, []string{"aaaa", "bbbb"}, cfg.PinnedSPKI)
			},
		},
		{
			name: "file values with env override",
			env: map[string]string{
				"KEYGEN_CACHE_DIR": "/var/lib/licensed",
			},
			file: `
account_id: from-file
verify_key: ` + testVerifyKey + `
cache:
  dir: ./from-file
  retention_days: 7
server:
  port: 7070
  read_timeout: 5s
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "from-file", cfg.AccountID)
				assert.Equal(t, "/var/lib/licensed", cfg.Cache.Dir)
				assert.Equal(t, 7, cfg.Cache.RetentionDays)
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
			},
		},
		{
			name:    "missing account id",
			env:     map[string]string{"KEYGEN_VERIFY_KEY": testVerifyKey},
			wantErr: "account_id is required",
		},
		{
			name:    "ed25519 without verify key",
			env:     map[string]string{"KEYGEN_ACCOUNT_ID": "acct"},
			wantErr: "verify_key is required",
		},
		{
			name: "rsa without public key",
			env: map[string]string{
				"KEYGEN_ACCOUNT_ID": "acct",
				"KEYGEN_SCHEME":     "rsa-sha256",
			},
			wantErr: "public_key is required",
		},
		{
			name: "unknown scheme",
			env: map[string]string{
				"KEYGEN_ACCOUNT_ID": "acct",
				"KEYGEN_SCHEME":     "hmac",
			},
			wantErr: "scheme must be one of",
		},
		{
			name: "redis backend without url",
			env: map[string]string{
				"KEYGEN_ACCOUNT_ID":    "acct",
				"KEYGEN_VERIFY_KEY":    testVerifyKey,
				"KEYGEN_CACHE_BACKEND": "redis",
			},
			wantErr: "redis_url is required",
		},
		{
			name: "bad duration",
			env: map[string]string{
				"KEYGEN_ACCOUNT_ID": "acct",
				"KEYGEN_TIMEOUT":    "soon",
			},
			wantErr: "failed to load config from env",
		},
		{
			name:    "unknown file key",
			file:    "acount_id: typo\n",
			wantErr: "failed to load config from file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}

			cfg, err := LoadFile(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestLoad_UsesConfigFileEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "account_id: acct\nverify_key: "+testVerifyKey+"\n")
	t.Setenv(ConfigFileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "acct", cfg.AccountID)
}

func TestDefault_IsValidOnceAuthorityIsSet(t *testing.T) {
	cfg := Default()
	cfg.AccountID = "acct"
	cfg.VerifyKey = testVerifyKey
	assert.NoError(t, cfg.Validate())

	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}
