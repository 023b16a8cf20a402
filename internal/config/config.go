package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"chat-relay/internal/integrations/gemini"
	"chat-relay/internal/integrations/paramstore"
)

// Keys, looked up in flags first and then in the environment (upper-cased).
const (
	KeyAPIKey      = "gemini_api_key"
	KeyAPIKeyParam = "gemini_api_key_param"
	KeyModel       = "gemini_model"
	KeyBaseURL     = "gemini_base_url"
	KeyTimeout     = "upstream_timeout"
	KeyAddr        = "addr"
	KeyLogLevel    = "log_level"
)

// Config is read once at startup and never mutated afterwards.
type Config struct {
	APIKey      string
	APIKeyParam string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	Addr        string
	LogLevel    slog.Level
}

// New returns a viper instance with defaults set and environment lookup on.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyModel, gemini.DefaultModel)
	v.SetDefault(KeyBaseURL, gemini.DefaultBaseURL)
	v.SetDefault(KeyTimeout, gemini.DefaultTimeout)
	v.SetDefault(KeyAddr, ":8000")
	v.SetDefault(KeyLogLevel, "info")
	v.AutomaticEnv()
	return v
}

// LoadDotEnv copies variables from a .env file into the process environment
// without overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		return Config{}, errors.New("config: viper instance must not be nil")
	}
	cfg := Config{
		APIKey:      strings.TrimSpace(v.GetString(KeyAPIKey)),
		APIKeyParam: strings.TrimSpace(v.GetString(KeyAPIKeyParam)),
		Model:       strings.TrimSpace(v.GetString(KeyModel)),
		BaseURL:     strings.TrimSpace(v.GetString(KeyBaseURL)),
		Timeout:     v.GetDuration(KeyTimeout),
		Addr:        strings.TrimSpace(v.GetString(KeyAddr)),
	}
	if cfg.Model == "" {
		return Config{}, errors.New("config: gemini model must not be empty")
	}
	if cfg.Timeout <= 0 {
		return Config{}, fmt.Errorf("config: upstream timeout must be positive, got %q", v.GetString(KeyTimeout))
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return Config{}, fmt.Errorf("config: log level: %w", err)
	}
	return cfg, nil
}

// ResolveAPIKey returns the configured key, falling back to the SSM parameter
// named by APIKeyParam. newGetter is only called when that fallback is needed.
// An empty key with a nil error means no key is configured.
func (c Config) ResolveAPIKey(ctx context.Context, newGetter func(context.Context) (paramstore.Getter, error)) (string, error) {
	if c.APIKey != "" || c.APIKeyParam == "" {
		return c.APIKey, nil
	}
	if newGetter == nil {
		return "", errors.New("config: parameter store getter factory is nil")
	}
	getter, err := newGetter(ctx)
	if err != nil {
		return "", fmt.Errorf("config: parameter store: %w", err)
	}
	key, err := paramstore.FetchAPIKey(ctx, getter, c.APIKeyParam)
	if err != nil {
		return "", fmt.Errorf("config: resolve api key: %w", err)
	}
	return key, nil
}
