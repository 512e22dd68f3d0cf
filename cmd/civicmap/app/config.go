package app

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/civicmap/pkg/cache"
	"github.com/agentstation/civicmap/pkg/constants"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/store"
)

// DefaultGeminiModel is used for extraction unless gemini_model is set.
const DefaultGeminiModel = "gemini-2.5-flash"

// Config holds the application configuration loaded from config files,
// environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	ConfigFile string

	// Storage
	DataDir      string
	StoreBackend store.Backend
	CacheBackend cache.Backend

	// Reconciliation and extraction
	Concurrency         int
	MaxAttempts         int
	SimilarityThreshold float64
	GeminiModel         string
	GoogleAPIKey        string

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration in order of precedence:
//  1. Command-line flags (applied later by UpdateFromFlags)
//  2. Environment variables (CIVICMAP_DATA_DIR, LOG_LEVEL, GOOGLE_API_KEY, ...)
//  3. .env and .env.local
//  4. Config file (path, or .civicmap.yaml in $HOME or the working directory)
//  5. Defaults
func LoadConfig(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", constants.DefaultDataDir)
	v.SetDefault("store_backend", string(store.BackendJSON))
	v.SetDefault("cache_backend", string(cache.BackendJSON))
	v.SetDefault("concurrency", constants.DefaultConcurrency)
	v.SetDefault("max_attempts", constants.MaxAttempts)
	v.SetDefault("similarity_threshold", constants.AddressSimilarityThreshold)
	v.SetDefault("gemini_model", DefaultGeminiModel)
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")

	// Unprefixed names shared with other tools.
	for key, envs := range map[string][]string{
		"google_api_key": {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
		"log_level":      {"LOG_LEVEL"},
		"log_format":     {"LOG_FORMAT"},
		"log_output":     {"LOG_OUTPUT"},
	} {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, errors.NewConfigError("env", "binding "+key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".civicmap")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit path must exist; the search paths are optional.
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "reading config file", err)
		}
	}

	cfg := &Config{
		ConfigFile:          v.ConfigFileUsed(),
		Format:              v.GetString("format"),
		DataDir:             v.GetString("data_dir"),
		StoreBackend:        store.Backend(v.GetString("store_backend")),
		CacheBackend:        cache.Backend(v.GetString("cache_backend")),
		Concurrency:         v.GetInt("concurrency"),
		MaxAttempts:         v.GetInt("max_attempts"),
		SimilarityThreshold: v.GetFloat64("similarity_threshold"),
		GeminiModel:         v.GetString("gemini_model"),
		GoogleAPIKey:        v.GetString("google_api_key"),
		LogLevel:            v.GetString("log_level"),
		LogFormat:           v.GetString("log_format"),
		LogOutput:           v.GetString("log_output"),
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case store.BackendJSON, store.BackendBadger:
	default:
		return errors.NewValidationError("store_backend", c.StoreBackend, "must be json or badger")
	}
	switch c.CacheBackend {
	case cache.BackendJSON, cache.BackendBadger:
	default:
		return errors.NewValidationError("cache_backend", c.CacheBackend, "must be json or badger")
	}
	if c.Concurrency < 1 || c.Concurrency > constants.MaxConcurrency {
		return errors.NewValidationError("concurrency", c.Concurrency, "out of range")
	}
	if c.MaxAttempts < 1 {
		return errors.NewValidationError("max_attempts", c.MaxAttempts, "must be at least 1")
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return errors.NewValidationError("similarity_threshold", c.SimilarityThreshold, "must be between 0 and 1")
	}
	return nil
}

// Flags are the persistent command-line overrides.
type Flags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	NoColor    bool
	Format     string
	LogLevel   string
	DataDir    string
}

// UpdateFromFlags applies flag values, which take precedence over every
// other source. Empty strings leave the loaded value in place.
func (c *Config) UpdateFromFlags(f Flags) {
	c.Verbose = f.Verbose
	c.Quiet = f.Quiet
	c.NoColor = f.NoColor
	if f.Format != "" {
		c.Format = f.Format
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	if f.DataDir != "" {
		c.DataDir = f.DataDir
	}
}

// loadEnvFiles loads .env then .env.local. godotenv never overrides
// variables that are already set.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}
