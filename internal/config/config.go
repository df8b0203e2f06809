package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/fieldsales/pkg/config"
)

// EnvPrefix is prepended to every variable name below.
const EnvPrefix = "FIELDSALES_"

// Token store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds all configuration for the fieldsales client and console.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// Backend API
	APIBaseURL     string        `env:"API_BASE_URL" envDefault:"http://localhost:8000"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	HTTPMaxRetries int           `env:"HTTP_MAX_RETRIES" envDefault:"2"`
	RetryWaitMin   time.Duration `env:"HTTP_RETRY_WAIT_MIN" envDefault:"500ms"`
	RetryWaitMax   time.Duration `env:"HTTP_RETRY_WAIT_MAX" envDefault:"5s"`

	// Circuit breaker around the backend
	CBMaxRequests  uint32        `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     time.Duration `env:"CB_INTERVAL" envDefault:"60s"`
	CBTimeout      time.Duration `env:"CB_TIMEOUT" envDefault:"30s"`
	CBFailureRatio float64       `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32        `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Credential persistence
	TokenStore       string `env:"TOKEN_STORE" envDefault:"file"`
	TokenDir         string `env:"TOKEN_DIR"`
	TokenAgeIdentity string `env:"TOKEN_AGE_IDENTITY"`

	// Redis token store
	RedisHost      string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort      int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string        `env:"REDIS_KEY_PREFIX" envDefault:"fieldsales:session:"`
	RedisTTL       time.Duration `env:"REDIS_TTL" envDefault:"0s"`
	// RedisSlowThreshold logs slower commands as warnings; 0 disables.
	RedisSlowThreshold time.Duration `env:"REDIS_SLOW_THRESHOLD" envDefault:"100ms"`

	// Session
	RevalidateTimeout time.Duration `env:"REVALIDATE_TIMEOUT" envDefault:"15s"`

	// Visit upload
	PhotoTargetBytes    int           `env:"PHOTO_TARGET_BYTES" envDefault:"1048576"`
	PhotoMaxDimensions  []int         `env:"PHOTO_MAX_DIMENSIONS" envDefault:"1920,1280,800" envSeparator:","`
	PhotoQualities      []int         `env:"PHOTO_QUALITIES" envDefault:"80,60,40" envSeparator:","`
	SubmitSafetyTimeout time.Duration `env:"SUBMIT_SAFETY_TIMEOUT" envDefault:"30s"`

	// Console server
	ConsolePort       int     `env:"CONSOLE_PORT" envDefault:"8088"`
	ConsoleLoginRPS   float64 `env:"CONSOLE_LOGIN_RPS" envDefault:"1"`
	ConsoleLoginBurst int     `env:"CONSOLE_LOGIN_BURST" envDefault:"5"`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from FIELDSALES_* environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadWithPrefix(cfg, EnvPrefix); err != nil {
		return nil, fmt.Errorf("load fieldsales config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid API base URL %q", c.APIBaseURL)
	}
	// Bearer tokens must not cross the network in clear text outside development.
	if c.Environment != "development" && u.Scheme != "https" {
		return fmt.Errorf("API base URL must use https in %q mode", c.Environment)
	}

	switch c.TokenStore {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("invalid token store %q: want memory, file or redis", c.TokenStore)
	}

	for name, d := range map[string]time.Duration{
		"HTTP_TIMEOUT":          c.HTTPTimeout,
		"REVALIDATE_TIMEOUT":    c.RevalidateTimeout,
		"SUBMIT_SAFETY_TIMEOUT": c.SubmitSafetyTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.HTTPMaxRetries < 0 {
		return fmt.Errorf("HTTP_MAX_RETRIES must not be negative, got %d", c.HTTPMaxRetries)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %v", c.CBFailureRatio)
	}

	if c.PhotoTargetBytes <= 0 {
		return fmt.Errorf("PHOTO_TARGET_BYTES must be positive, got %d", c.PhotoTargetBytes)
	}
	if n := len(c.PhotoQualities); n == 0 || n > 3 || n != len(c.PhotoMaxDimensions) {
		return fmt.Errorf("photo passes: want 1 to 3 qualities matching max dimensions, got %d and %d",
			len(c.PhotoQualities), len(c.PhotoMaxDimensions))
	}
	for i, q := range c.PhotoQualities {
		if q < 1 || q > 100 {
			return fmt.Errorf("photo quality %d must be between 1 and 100", q)
		}
		if c.PhotoMaxDimensions[i] <= 0 {
			return fmt.Errorf("photo max dimension %d must be positive", c.PhotoMaxDimensions[i])
		}
	}

	if c.ConsolePort < 1 || c.ConsolePort > 65535 {
		return fmt.Errorf("invalid console port: %d", c.ConsolePort)
	}
	if c.ConsoleLoginRPS <= 0 || c.ConsoleLoginBurst < 1 {
		return fmt.Errorf("console login limit must be positive, got %v rps burst %d", c.ConsoleLoginRPS, c.ConsoleLoginBurst)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be in [0, 1], got %v", c.OTELSampleRate)
	}
	return nil
}

// APIBase returns the base URL without a trailing slash.
func (c *Config) APIBase() string {
	return strings.TrimRight(c.APIBaseURL, "/")
}

// TokenDirectory resolves the file store directory, defaulting to
// <user config dir>/fieldsales/session.
func (c *Config) TokenDirectory() (string, error) {
	if c.TokenDir != "" {
		return c.TokenDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve token dir: %w", err)
	}
	return filepath.Join(base, "fieldsales", "session"), nil
}
