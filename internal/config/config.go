package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	AuthorityConfig `yaml:",inline"`

	// LicenseKey is revalidated in the background by the agent when set.
	LicenseKey         string        `yaml:"license_key" envconfig:"LICENSE_KEY"`
	RevalidateInterval time.Duration `yaml:"revalidate_interval" envconfig:"REVALIDATE_INTERVAL" validate:"gte=0"`

	Cache     CacheConfig     `yaml:"cache" envconfig:"CACHE"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// AuthorityConfig identifies the license authority and the key material
// trusted for its responses.
type AuthorityConfig struct {
	AccountID string `yaml:"account_id" envconfig:"ACCOUNT_ID" validate:"required"`
	Host      string `yaml:"host" envconfig:"HOST" validate:"required,hostname_rfc1123|hostname_port"`
	// BaseURL overrides "https://" + Host for requests, not for signatures.
	BaseURL   string        `yaml:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
	Scheme    string        `yaml:"scheme" envconfig:"SCHEME" validate:"oneof=rsa-sha256 ed25519"`
	PublicKey string        `yaml:"public_key" envconfig:"PUBLIC_KEY" validate:"required_if=Scheme rsa-sha256"`
	VerifyKey string        `yaml:"verify_key" envconfig:"VERIFY_KEY" validate:"required_if=Scheme ed25519"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	RPS       float64       `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst     int           `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
	// PinnedSPKI lists SHA-256 SPKI hashes accepted for the authority's TLS
	// certificate chain. Empty disables pinning.
	PinnedSPKI []string `yaml:"pinned_spki" envconfig:"PINNED_SPKI" validate:"dive,required"`
}

// CacheConfig selects and configures the offline cache backend.
type CacheConfig struct {
	Backend       string        `yaml:"backend" envconfig:"BACKEND" validate:"oneof=file redis memory"`
	Dir           string        `yaml:"dir" envconfig:"DIR" validate:"required_if=Backend file"`
	RedisURL      string        `yaml:"redis_url" envconfig:"REDIS_URL" validate:"required_if=Backend redis"`
	RedisPrefix   string        `yaml:"redis_prefix" envconfig:"REDIS_PREFIX"`
	RedisTTL      time.Duration `yaml:"redis_ttl" envconfig:"REDIS_TTL" validate:"gte=0"`
	RetentionDays int           `yaml:"retention_days" envconfig:"RETENTION_DAYS" validate:"gte=1"`
}

// ServerConfig contains HTTP server configuration for the agent.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console stderr file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_if=Output file,required_if=Output both"`
}

// TelemetryConfig contains OpenTelemetry configuration.
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// Default returns the configuration used before the file and environment
// are applied.
func Default() *Config {
	return &Config{
		AuthorityConfig: AuthorityConfig{
			Host:    DefaultHost,
			Scheme:  DefaultScheme,
			Timeout: DefaultAuthorityTimeout,
			RPS:     DefaultAuthorityRPS,
			Burst:   DefaultAuthorityBurst,
		},
		Cache: CacheConfig{
			Backend:       CacheBackendFile,
			Dir:           DefaultCacheDir,
			RedisPrefix:   DefaultRedisPrefix,
			RetentionDays: DefaultCacheRetentionDays,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/licensed.log",
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by KEYGEN_CONFIG_FILE and KEYGEN_* environment variables, in that order of
// precedence (environment wins), then validates it.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file at path onto cfg.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

func (c *Config) normalize() {
	c.Scheme = strings.ToLower(strings.TrimSpace(c.Scheme))
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	c.Logging.Output = strings.ToLower(c.Logging.Output)
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	field = strings.TrimPrefix(field, "AuthorityConfig.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
}

// AuthorityURL returns the base URL requests are sent to.
func (c *Config) AuthorityURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://" + c.Host
}
