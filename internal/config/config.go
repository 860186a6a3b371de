// Package config loads runtime configuration for the waitlist service from
// the environment. A missing store endpoint is not an error: the service
// deliberately falls back to an in-memory stub so the landing page can be
// developed locally without credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the waitlist service.
type Config struct {
	App   AppConfig
	Store StoreConfig
	Form  FormConfig
	HTTP  HTTPConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// StoreConfig points at the hosted submission store. URL and Key are both
// optional; when either is absent the service runs in the unconfigured
// mode backed by the stub store.
type StoreConfig struct {
	URL               string
	Key               string
	Table             string
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	RequestTimeout    time.Duration
}

// Configured reports whether the remote store can be used.
func (s StoreConfig) Configured() bool {
	return s.URL != "" && s.Key != ""
}

// FormConfig carries the form controller timings.
type FormConfig struct {
	ValidateDebounce   time.Duration
	EmailCheckDebounce time.Duration
	AutoResetDelay     time.Duration
}

// HTTPConfig bounds the API server.
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Load reads environment variables, applies defaults, validates values and
// returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Store.URL = ldr.getString("STORE_URL", "", false)
	cfg.Store.Key = ldr.getString("STORE_KEY", "", false)
	cfg.Store.Table = ldr.getString("STORE_TABLE", "waitlist_submissions", false)
	cfg.Store.MaxAttempts = ldr.getInt("STORE_MAX_ATTEMPTS", 3, false)
	cfg.Store.InitialDelay = ldr.getDurationMs("STORE_INITIAL_DELAY_MS", time.Second)
	cfg.Store.BackoffMultiplier = ldr.getFloat("STORE_BACKOFF_MULTIPLIER", 2)
	cfg.Store.RequestTimeout = ldr.getDurationMs("STORE_REQUEST_TIMEOUT_MS", 10*time.Second)

	cfg.Form.ValidateDebounce = ldr.getDurationMs("FORM_VALIDATE_DEBOUNCE_MS", 300*time.Millisecond)
	cfg.Form.EmailCheckDebounce = ldr.getDurationMs("FORM_EMAIL_DEBOUNCE_MS", 500*time.Millisecond)
	cfg.Form.AutoResetDelay = ldr.getDurationMs("FORM_AUTO_RESET_MS", 5*time.Second)

	cfg.HTTP.ReadTimeout = ldr.getDurationMs("HTTP_READ_TIMEOUT_MS", 10*time.Second)
	cfg.HTTP.WriteTimeout = ldr.getDurationMs("HTTP_WRITE_TIMEOUT_MS", 15*time.Second)
	cfg.HTTP.ShutdownTimeout = ldr.getDurationMs("HTTP_SHUTDOWN_TIMEOUT_MS", 10*time.Second)

	if cfg.Store.MaxAttempts < 1 {
		ldr.addError("STORE_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.Store.BackoffMultiplier < 1 {
		ldr.addError("STORE_BACKOFF_MULTIPLIER must be at least 1")
	}
	if cfg.App.Port < 1 || cfg.App.Port > 65535 {
		ldr.addError("APP_PORT must be a valid port number")
	}
	if (cfg.Store.URL == "") != (cfg.Store.Key == "") {
		ldr.addError("STORE_URL and STORE_KEY must be set together")
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getFloat(key string, def float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			return def
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid number", key))
			return def
		}
		return f
	}
	return def
}

// getDurationMs reads a millisecond count; negative values are rejected.
func (l *envLoader) getDurationMs(key string, def time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			return def
		}
		ms, err := strconv.Atoi(val)
		if err != nil || ms < 0 {
			l.addError(fmt.Sprintf("%s must be a non-negative integer of milliseconds", key))
			return def
		}
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
