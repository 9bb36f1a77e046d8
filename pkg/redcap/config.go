package redcap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Duration is a time.Duration that yaml decodes from strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

// Config carries everything needed to talk to one REDCap project.
type Config struct {
	// URL is the project's API endpoint.
	URL string `yaml:"url" validate:"required,url"`
	// Token authenticates every call against the project.
	Token string `yaml:"token" validate:"required"`
	// Name labels the project in logs; purely informational.
	Name string `yaml:"name"`
	// VerifyTLS turns TLS peer verification on. Off by default, see
	// WithTLSVerification.
	VerifyTLS bool `yaml:"verify_tls"`
	// Timeout bounds each HTTP exchange.
	Timeout Duration `yaml:"timeout"`
}

// NewDefaultConfig returns a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{Timeout: Duration(DefaultTimeout)}
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFromEnv builds a Config from the REDCAP_URL, REDCAP_TOKEN,
// REDCAP_PROJECT_NAME, REDCAP_VERIFY_TLS, and REDCAP_TIMEOUT environment
// variables, loading a .env file first when one exists.
func LoadConfigFromEnv() (*Config, error) {
	// A missing .env file is fine; the process environment wins anyway.
	_ = godotenv.Load()

	cfg := NewDefaultConfig()
	cfg.URL = os.Getenv("REDCAP_URL")
	cfg.Token = os.Getenv("REDCAP_TOKEN")
	cfg.Name = os.Getenv("REDCAP_PROJECT_NAME")

	if v := os.Getenv("REDCAP_VERIFY_TLS"); v != "" {
		verify, err := strconv.ParseBool(v)
		if err != nil {
			return nil, NewConfigurationError(fmt.Sprintf("REDCAP_VERIFY_TLS: %v", err))
		}
		cfg.VerifyTLS = verify
	}
	if v := os.Getenv("REDCAP_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return nil, NewConfigurationError(fmt.Sprintf("REDCAP_TIMEOUT: %v", err))
		}
		cfg.Timeout = Duration(timeout)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		fields := make([]string, 0, len(validatorErrs))
		for _, fieldErr := range validatorErrs {
			fields = append(fields, strings.ToLower(fieldErr.Field()))
		}
		return NewConfigurationError("invalid config: " + strings.Join(fields, ", "))
	}
	return err
}

// executeOptions translates the config into per-call transport options.
func (c *Config) executeOptions() []ExecuteOption {
	opts := []ExecuteOption{WithTLSVerification(c.VerifyTLS)}
	if c.Timeout > 0 {
		opts = append(opts, WithTimeout(time.Duration(c.Timeout)))
	}
	return opts
}
