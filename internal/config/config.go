package config

import (
	"crypto/rand"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rxintake/rxintake/internal/platform/middleware"
)

const minSigningKeyLen = 32

type Config struct {
	Port                  string        `mapstructure:"PORT"`
	Env                   string        `mapstructure:"ENV"`
	DatabaseURL           string        `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins           []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS          float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int           `mapstructure:"RATE_LIMIT_BURST"`
	StorageBackend        string        `mapstructure:"STORAGE_BACKEND"`
	StorageBucket         string        `mapstructure:"STORAGE_BUCKET"`
	StoragePublicBaseURL  string        `mapstructure:"STORAGE_PUBLIC_BASE_URL"`
	S3Endpoint            string        `mapstructure:"S3_ENDPOINT"`
	UploadMaxSize         string        `mapstructure:"UPLOAD_MAX_SIZE"`
	SessionSigningKey     string        `mapstructure:"SESSION_SIGNING_KEY"`
	SessionTTL            time.Duration `mapstructure:"SESSION_TTL"`
	SessionStore          string        `mapstructure:"SESSION_STORE"`
	SessionFile           string        `mapstructure:"SESSION_FILE"`
	SessionSlotKey        string        `mapstructure:"SESSION_SLOT_KEY"`
	RedisURL              string        `mapstructure:"REDIS_URL"`
	BcryptCost            int           `mapstructure:"BCRYPT_COST"`
	RehashLegacyPasswords bool          `mapstructure:"REHASH_LEGACY_PASSWORDS"`
	NotifyQueueURL        string        `mapstructure:"NOTIFY_QUEUE_URL"`
	TLSEnabled            bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile           string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile            string        `mapstructure:"TLS_KEY_FILE"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"STORAGE_BACKEND", "STORAGE_BUCKET", "STORAGE_PUBLIC_BASE_URL", "S3_ENDPOINT", "UPLOAD_MAX_SIZE",
	"SESSION_SIGNING_KEY", "SESSION_TTL", "SESSION_STORE", "SESSION_FILE", "SESSION_SLOT_KEY",
	"REDIS_URL", "BCRYPT_COST", "REHASH_LEGACY_PASSWORDS", "NOTIFY_QUEUE_URL",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".rxintake", "session.json")
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("STORAGE_BACKEND", "memory")
	v.SetDefault("STORAGE_BUCKET", "prescriptions")
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "http://localhost:8000/storage")
	v.SetDefault("UPLOAD_MAX_SIZE", "20M")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("SESSION_STORE", "file")
	v.SetDefault("SESSION_FILE", defaultSessionFile())
	v.SetDefault("SESSION_SLOT_KEY", "admin_user")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("REHASH_LEGACY_PASSWORDS", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UploadLimit is UPLOAD_MAX_SIZE in bytes.
func (c *Config) UploadLimit() (int64, error) {
	n, err := middleware.ParseSize(c.UploadMaxSize)
	if err != nil {
		return 0, fmt.Errorf("UPLOAD_MAX_SIZE: %w", err)
	}
	return n, nil
}

// SigningKey returns SESSION_SIGNING_KEY. Outside production an empty key is
// replaced by a random one, so tokens do not survive a restart.
func (c *Config) SigningKey() ([]byte, error) {
	if c.SessionSigningKey != "" {
		return []byte(c.SessionSigningKey), nil
	}
	if c.IsProduction() {
		return nil, fmt.Errorf("SESSION_SIGNING_KEY is required in production")
	}
	key := make([]byte, minSigningKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return key, nil
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("ENV must be \"development\" or \"production\", got %q", c.Env)
	}

	switch c.StorageBackend {
	case "memory":
	case "s3":
		u, err := url.Parse(c.StoragePublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("STORAGE_PUBLIC_BASE_URL must be an absolute URL when STORAGE_BACKEND is s3")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"memory\" or \"s3\", got %q", c.StorageBackend)
	}
	if c.StorageBucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required")
	}
	if _, err := c.UploadLimit(); err != nil {
		return err
	}

	switch c.SessionStore {
	case "file":
		if c.SessionFile == "" {
			return fmt.Errorf("SESSION_FILE is required when SESSION_STORE is file")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_STORE is redis")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be \"file\" or \"redis\", got %q", c.SessionStore)
	}

	if c.IsProduction() && len(c.SessionSigningKey) < minSigningKeyLen {
		return fmt.Errorf("SESSION_SIGNING_KEY must be at least %d bytes in production", minSigningKeyLen)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
