// Package config loads client settings from ~/.fisherman/config.yaml, a .env
// file and FISHERMAN_* environment variables, in increasing precedence.
// Command-line flags are applied on top by the cmd package.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fisherman-publications/fisherman/internal/errors"
	"github.com/fisherman-publications/fisherman/internal/log"
)

// Defaults
const (
	DefaultAPIURL   = "http://localhost:8000/api"
	DefaultTimeout  = 30 * time.Second
	DefaultRetries  = 2
	DefaultLogLevel = "warn"
	DefaultLogFmt   = "text"

	dirName        = ".fisherman"
	configFileName = "config.yaml"
	storeFileName  = "credentials.json"
)

// Environment variables
const (
	EnvAPIURL            = "FISHERMAN_API_URL"
	EnvTimeout           = "FISHERMAN_TIMEOUT"
	EnvRetries           = "FISHERMAN_RETRIES"
	EnvValidateResponses = "FISHERMAN_VALIDATE_RESPONSES"
	EnvStorePath         = "FISHERMAN_STORE_PATH"
	EnvStorePassphrase   = "FISHERMAN_STORE_PASSPHRASE"
	EnvLogLevel          = "FISHERMAN_LOG_LEVEL"
	EnvLogFormat         = "FISHERMAN_LOG_FORMAT"
	EnvMetricsAddr       = "FISHERMAN_METRICS_ADDR"
	EnvGoogleClientID    = "FISHERMAN_GOOGLE_CLIENT_ID"
	EnvGoogleSecret      = "FISHERMAN_GOOGLE_CLIENT_SECRET"
	EnvGoogleRedirectURL = "FISHERMAN_GOOGLE_REDIRECT_URL"
)

// Config holds every client setting
type Config struct {
	APIURL            string        `yaml:"api_url"`
	Timeout           time.Duration `yaml:"timeout"`
	Retries           uint64        `yaml:"retries"`
	ValidateResponses bool          `yaml:"validate_responses"`
	MetricsAddr       string        `yaml:"metrics_addr,omitempty"`

	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
	Google GoogleConfig `yaml:"google,omitempty"`
}

// StoreConfig configures the credential store
type StoreConfig struct {
	Path       string `yaml:"path"`
	Passphrase string `yaml:"passphrase,omitempty"`
	Ephemeral  bool   `yaml:"ephemeral,omitempty"`
}

// LogConfig configures diagnostic logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GoogleConfig configures Google sign-in
type GoogleConfig struct {
	ClientID     string `yaml:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty"`
	RedirectURL  string `yaml:"redirect_url,omitempty"`
}

// Dir returns ~/.fisherman
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dirName
	}
	return filepath.Join(home, dirName)
}

// DefaultPath returns the default config file path
func DefaultPath() string {
	return filepath.Join(Dir(), configFileName)
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		APIURL:  DefaultAPIURL,
		Timeout: DefaultTimeout,
		Retries: DefaultRetries,
		Store: StoreConfig{
			Path: filepath.Join(Dir(), storeFileName),
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFmt,
		},
	}
}

// Load builds the configuration. path may be empty for the default file,
// which is optional; an explicit path must exist. envFiles are read with
// godotenv; missing ones are skipped. Process environment wins over .env values.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigReadFail, fmt.Sprintf("failed to parse %s", path), err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, errors.Wrap(errors.ErrCodeConfigReadFail, fmt.Sprintf("failed to read %s", path), err).
			WithSuggestion("Check the --config flag")
	}

	dotenv, err := readEnvFiles(envFiles)
	if err != nil {
		return nil, err
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return map[string]string{}, nil
	}

	values, err := godotenv.Read(existing...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigReadFail, "failed to read .env", err)
	}
	return values, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str(EnvAPIURL, &c.APIURL)
	str(EnvStorePath, &c.Store.Path)
	str(EnvStorePassphrase, &c.Store.Passphrase)
	str(EnvLogLevel, &c.Log.Level)
	str(EnvLogFormat, &c.Log.Format)
	str(EnvMetricsAddr, &c.MetricsAddr)
	str(EnvGoogleClientID, &c.Google.ClientID)
	str(EnvGoogleSecret, &c.Google.ClientSecret)
	str(EnvGoogleRedirectURL, &c.Google.RedirectURL)

	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.NewConfigInvalidError(fmt.Sprintf("%s: %v", EnvTimeout, err))
		}
		c.Timeout = d
	}

	if v, ok := lookup(EnvRetries); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.NewConfigInvalidError(fmt.Sprintf("%s: %v", EnvRetries, err))
		}
		c.Retries = n
	}

	if v, ok := lookup(EnvValidateResponses); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.NewConfigInvalidError(fmt.Sprintf("%s: %v", EnvValidateResponses, err))
		}
		c.ValidateResponses = b
	}

	return nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewConfigInvalidError(fmt.Sprintf("api_url %q must be an absolute http(s) URL", c.APIURL))
	}

	if c.Timeout <= 0 {
		return errors.NewConfigInvalidError("timeout must be positive")
	}

	if c.Retries > 10 {
		return errors.NewConfigInvalidError("retries must be at most 10")
	}

	if _, ok := log.LookupLevel(c.Log.Level); !ok {
		return errors.NewConfigInvalidError(fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "console", "json":
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	if !c.Store.Ephemeral && c.Store.Path == "" {
		return errors.NewConfigInvalidError("store.path is required unless the store is ephemeral")
	}

	return nil
}
