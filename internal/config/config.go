package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL = "http://localhost:8000"

	TokenBackendSQLite = "sqlite"
	TokenBackendFile   = "file"

	appDirName     = ".labdesk"
	configFileName = "config.yaml"
)

// Config aggregates runtime configuration for the client.
type Config struct {
	APIURL string `yaml:"api_url"`
	// DataDir holds the local database, the token file and the config file.
	DataDir           string `yaml:"data_dir"`
	TokenBackend      string `yaml:"token_backend"`
	LogLevel          string `yaml:"log_level"`
	RequestTimeoutSec int    `yaml:"request_timeout_seconds"`
	ValidateOnStartup bool   `yaml:"validate_on_startup"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		APIURL:       DefaultAPIURL,
		DataDir:      DefaultDataDir(),
		TokenBackend: TokenBackendSQLite,
		LogLevel:     "info",
	}
}

// DefaultDataDir returns ~/.labdesk, falling back to the working directory
// when the home directory cannot be determined.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return appDirName
	}
	return filepath.Join(homeDir, appDirName)
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), configFileName)
}

// Load layers defaults, the YAML file at path (missing file is fine), a .env
// file in the working directory and LABDESK_* environment variables.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.APIURL = getEnv("LABDESK_API_URL", c.APIURL)
	c.DataDir = getEnv("LABDESK_DATA_DIR", c.DataDir)
	c.TokenBackend = getEnv("LABDESK_TOKEN_BACKEND", c.TokenBackend)
	c.LogLevel = getEnv("LABDESK_LOG_LEVEL", c.LogLevel)
	c.RequestTimeoutSec = getEnvAsInt("LABDESK_REQUEST_TIMEOUT_SECONDS", c.RequestTimeoutSec)
	c.ValidateOnStartup = getEnvAsBool("LABDESK_VALIDATE_ON_STARTUP", c.ValidateOnStartup)
}

// Validate checks the values that would otherwise fail later and far away.
func (c *Config) Validate() error {
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("invalid api_url %q: must start with http:// or https://", c.APIURL)
	}
	switch c.TokenBackend {
	case TokenBackendSQLite, TokenBackendFile:
	default:
		return fmt.Errorf("invalid token_backend %q: want %s or %s", c.TokenBackend, TokenBackendSQLite, TokenBackendFile)
	}
	if c.RequestTimeoutSec < 0 {
		return fmt.Errorf("invalid request_timeout_seconds %d", c.RequestTimeoutSec)
	}
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	return nil
}

// Save writes the configuration as YAML, readable only by the user.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// RequestTimeout returns the per-request timeout; zero means none.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// DatabasePath is the SQLite file holding local collections.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "labdesk.db")
}

// TokenFilePath is used by the file token backend.
func (c *Config) TokenFilePath() string {
	return filepath.Join(c.DataDir, ".token")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
