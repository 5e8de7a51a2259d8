package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	httpapi "github.com/arrstack/gatearr/internal/gateway/http"
)

// reservedAppNames are path prefixes the gateway claims for itself; an app
// registered under one of them would be unreachable.
var reservedAppNames = map[string]bool{
	"gatearr": true,
	"health":  true,
}

type Config struct {
	Server struct {
		Host                 string `yaml:"host"`                   // Listen address (default: 0.0.0.0)
		Port                 int    `yaml:"port"`                   // Listen port (default: 8080)
		ShutdownGraceSeconds int    `yaml:"shutdown_grace_seconds"` // Graceful shutdown timeout (default: 10)
	} `yaml:"server"`

	MediaServer struct {
		URL            string `yaml:"url"`             // Required: Jellyfin base URL
		APIKey         string `yaml:"api_key"`         // Optional: admin API key for user lookups
		TimeoutSeconds int    `yaml:"timeout_seconds"` // Login API timeout (default: 10)
	} `yaml:"media_server"`

	Security struct {
		Secret                 string `yaml:"secret"`                    // Optional: signing secret, raw bytes or "base64:" prefixed; generated per-process when empty
		AccessTokenExpiryHours int    `yaml:"access_token_expiry_hours"` // Access token TTL (default: 24)
		RefreshTokenExpiryDays int    `yaml:"refresh_token_expiry_days"` // Refresh token TTL (default: 30)
	} `yaml:"security"`

	Cookies struct {
		AccessName  string `yaml:"access_name"`  // default: gatearr_token
		RefreshName string `yaml:"refresh_name"` // default: gatearr_refresh
		Secure      bool   `yaml:"secure"`       // Set the Secure flag (default: false, for plain-HTTP LANs)
	} `yaml:"cookies"`

	// Apps maps path prefix names to backend base URLs.
	Apps map[string]string `yaml:"apps"`

	Proxy struct {
		RequestTimeoutSeconds int `yaml:"request_timeout_seconds"` // Per-request backend timeout; 0 disables (default: 0)
	} `yaml:"proxy"`

	Log struct {
		Env    string `yaml:"env"`    // Environment (dev, staging, prod) (default: dev)
		Level  string `yaml:"level"`  // Log level (debug, info, warn, error) (default: info)
		Format string `yaml:"format"` // Log format (json, text) (default: json)
	} `yaml:"log"`
}

// LoadConfig reads the YAML file at path, then lets GATEARR_* environment
// variables override individual fields. A missing file is fine when the
// path is the default one; everything needed can come from the environment.
func LoadConfig(path string, pathExplicit bool) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !pathExplicit:
		// Fall through to env-only configuration.
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultConfig() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Server.ShutdownGraceSeconds = 10
	cfg.MediaServer.TimeoutSeconds = 10
	cfg.Security.AccessTokenExpiryHours = 24
	cfg.Security.RefreshTokenExpiryDays = 30
	cfg.Cookies.AccessName = httpapi.DefaultAccessCookie
	cfg.Cookies.RefreshName = httpapi.DefaultRefreshCookie
	cfg.Log.Env = "dev"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

func (cfg *Config) applyEnv() {
	overrideString(&cfg.Server.Host, "GATEARR_HOST")
	overrideInt(&cfg.Server.Port, "GATEARR_PORT")
	overrideString(&cfg.MediaServer.URL, "GATEARR_MEDIA_SERVER_URL")
	overrideString(&cfg.MediaServer.APIKey, "GATEARR_MEDIA_SERVER_API_KEY")
	overrideString(&cfg.Security.Secret, "GATEARR_SECRET")
	overrideInt(&cfg.Security.AccessTokenExpiryHours, "GATEARR_ACCESS_TOKEN_EXPIRY_HOURS")
	overrideInt(&cfg.Security.RefreshTokenExpiryDays, "GATEARR_REFRESH_TOKEN_EXPIRY_DAYS")
	overrideInt(&cfg.Proxy.RequestTimeoutSeconds, "GATEARR_REQUEST_TIMEOUT_SECONDS")
	overrideString(&cfg.Log.Env, "GATEARR_ENV")
	overrideString(&cfg.Log.Level, "GATEARR_LOG_LEVEL")
	overrideString(&cfg.Log.Format, "GATEARR_LOG_FORMAT")
}

// Validate fails fast on configuration the gateway cannot run with. Called
// before the listener binds; an error here is fatal.
func (cfg *Config) Validate() error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", cfg.Server.Port)
	}

	if cfg.MediaServer.URL == "" {
		return errors.New("config: media_server.url is required")
	}
	if err := validateHTTPURL(cfg.MediaServer.URL); err != nil {
		return fmt.Errorf("config: media_server.url: %w", err)
	}

	if cfg.Security.AccessTokenExpiryHours < 1 {
		return fmt.Errorf("config: access_token_expiry_hours must be positive, got %d", cfg.Security.AccessTokenExpiryHours)
	}
	if cfg.Security.RefreshTokenExpiryDays < 1 {
		return fmt.Errorf("config: refresh_token_expiry_days must be positive, got %d", cfg.Security.RefreshTokenExpiryDays)
	}

	for name, raw := range cfg.Apps {
		if reservedAppNames[name] {
			return fmt.Errorf("config: app name %q is reserved by the gateway", name)
		}
		if name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("config: invalid app name %q", name)
		}
		if err := validateHTTPURL(raw); err != nil {
			return fmt.Errorf("config: app %q: %w", name, err)
		}
	}

	return nil
}

func (cfg *Config) AccessTTL() time.Duration {
	return time.Duration(cfg.Security.AccessTokenExpiryHours) * time.Hour
}

func (cfg *Config) RefreshTTL() time.Duration {
	return time.Duration(cfg.Security.RefreshTokenExpiryDays) * 24 * time.Hour
}

func (cfg *Config) MediaServerTimeout() time.Duration {
	return time.Duration(cfg.MediaServer.TimeoutSeconds) * time.Second
}

func (cfg *Config) RequestTimeout() time.Duration {
	return time.Duration(cfg.Proxy.RequestTimeoutSeconds) * time.Second
}

func (cfg *Config) ShutdownGrace() time.Duration {
	return time.Duration(cfg.Server.ShutdownGraceSeconds) * time.Second
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}

func overrideString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func overrideInt(dst *int, key string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		*dst = intValue
	}
}
