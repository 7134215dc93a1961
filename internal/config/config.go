package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ConfigFile string `envconfig:"BOYA_CONFIG_FILE" default:"buaa-boya-config.json"`
	CookieFile string `envconfig:"BOYA_COOKIE_FILE" default:"buaa-boya-cookie.json"`

	SSOURL      string        `envconfig:"BOYA_SSO_URL" default:"https://sso.buaa.edu.cn"`
	APIURL      string        `envconfig:"BOYA_API_URL" default:"https://bykc.buaa.edu.cn"`
	TimeZone    string        `envconfig:"BOYA_TIMEZONE" default:"Asia/Shanghai"`
	HTTPTimeout time.Duration `envconfig:"BOYA_HTTP_TIMEOUT" default:"20s"`

	// base64 or a path to a file holding base64
	CredKeyRaw        string `envconfig:"BOYA_CRED_KEY"`
	CookieHashKeyRaw  string `envconfig:"COOKIE_HASH_KEY"`
	CookieBlockKeyRaw string `envconfig:"COOKIE_BLOCK_KEY"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"warn"`
	Environment string `envconfig:"APP_ENV" default:"production"`

	TelemetryEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TelemetryInsecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"false"`
	ServiceName       string `envconfig:"SERVICE_NAME" default:"boyasched"`

	Location       *time.Location `ignored:"true"`
	CredKey        []byte         `ignored:"true"`
	CookieHashKey  []byte         `ignored:"true"`
	CookieBlockKey []byte         `ignored:"true"`
}

// FromEnv loads an optional .env file and then reads the environment.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return Config{}, fmt.Errorf("BOYA_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.HTTPTimeout <= 0 {
		return Config{}, fmt.Errorf("invalid BOYA_HTTP_TIMEOUT")
	}

	if cfg.CredKeyRaw != "" {
		if cfg.CredKey, err = decodeB64(cfg.CredKeyRaw); err != nil {
			return Config{}, fmt.Errorf("BOYA_CRED_KEY: %w", err)
		}
		if len(cfg.CredKey) != 32 {
			return Config{}, fmt.Errorf("BOYA_CRED_KEY must decode to 32 bytes, got %d", len(cfg.CredKey))
		}
	}

	if cfg.CookieBlockKeyRaw != "" && cfg.CookieHashKeyRaw == "" {
		return Config{}, fmt.Errorf("COOKIE_BLOCK_KEY requires COOKIE_HASH_KEY")
	}
	if cfg.CookieHashKeyRaw != "" {
		if cfg.CookieHashKey, err = decodeB64(cfg.CookieHashKeyRaw); err != nil {
			return Config{}, fmt.Errorf("COOKIE_HASH_KEY: %w", err)
		}
	}
	if cfg.CookieBlockKeyRaw != "" {
		if cfg.CookieBlockKey, err = decodeB64(cfg.CookieBlockKeyRaw); err != nil {
			return Config{}, fmt.Errorf("COOKIE_BLOCK_KEY: %w", err)
		}
		switch len(cfg.CookieBlockKey) {
		case 16, 24, 32:
		default:
			return Config{}, fmt.Errorf("COOKIE_BLOCK_KEY must decode to 16, 24 or 32 bytes")
		}
	}

	return cfg, nil
}

func decodeB64(s string) ([]byte, error) {
	b, err := os.ReadFile(s)
	if err == nil {
		// allow pointing to a file path for mounted secrets
		s = string(b)
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
