// Package app provides the application context and dependency management
// for the civicmap CLI: configuration, logging, and the lazily opened
// Civicmap instance.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/civicmap"
	"github.com/agentstation/civicmap/internal/appcontext"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/extract"
)

var _ appcontext.Interface = (*App)(nil)

// App holds the CLI's configuration and dependencies.
type App struct {
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	flags  Flags
	logger *zerolog.Logger

	mu       sync.Mutex
	civicmap civicmap.Civicmap
	model    extract.Model
}

// New creates an App with configuration loaded from the environment and the
// default config file locations.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	a := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	a.config = config

	logger := NewLogger(config)
	a.logger = &logger

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Version returns the version string.
func (a *App) Version() string { return a.version }

// Commit returns the git commit hash.
func (a *App) Commit() string { return a.commit }

// Date returns the build date.
func (a *App) Date() string { return a.date }

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string { return a.builtBy }

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string { return a.config.Format }

// NoColor reports whether colored output is disabled.
func (a *App) NoColor() bool { return a.config.NoColor }

// Civicmap returns the shared instance, opening it on first use.
func (a *App) Civicmap() (civicmap.Civicmap, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.civicmap != nil {
		return a.civicmap, nil
	}
	cm, err := civicmap.New(a.civicmapOptions()...)
	if err != nil {
		return nil, errors.WrapResource("open", "civicmap", a.config.DataDir, err)
	}
	a.civicmap = cm
	return cm, nil
}

// CivicmapWithOptions opens a separate instance. The caller closes it.
func (a *App) CivicmapWithOptions(opts ...civicmap.Option) (civicmap.Civicmap, error) {
	cm, err := civicmap.New(append(a.civicmapOptions(), opts...)...)
	if err != nil {
		return nil, errors.WrapResource("open", "civicmap", a.config.DataDir, err)
	}
	return cm, nil
}

// Model returns the Gemini extraction model, creating the client on first
// use.
func (a *App) Model(ctx context.Context) (extract.Model, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.model != nil {
		return a.model, nil
	}
	m, err := extract.NewGemini(ctx, a.config.GoogleAPIKey, a.config.GeminiModel)
	if err != nil {
		return nil, err
	}
	a.model = m
	return m, nil
}

// Shutdown releases the shared Civicmap instance.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	cm := a.civicmap
	a.civicmap = nil
	a.mu.Unlock()

	if cm == nil {
		return nil
	}
	if err := cm.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close civicmap during shutdown")
		return err
	}
	return nil
}

func (a *App) civicmapOptions() []civicmap.Option {
	c := a.config
	return []civicmap.Option{
		civicmap.WithDataDir(c.DataDir),
		civicmap.WithStoreBackend(c.StoreBackend),
		civicmap.WithCacheBackend(c.CacheBackend),
		civicmap.WithConcurrency(c.Concurrency),
		civicmap.WithMaxAttempts(c.MaxAttempts),
		civicmap.WithSimilarityThreshold(c.SimilarityThreshold),
	}
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig replaces the loaded configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		if err := config.Validate(); err != nil {
			return err
		}
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithCivicmap sets the shared instance (useful for testing).
func WithCivicmap(cm civicmap.Civicmap) Option {
	return func(a *App) error {
		a.civicmap = cm
		return nil
	}
}

// WithModel sets the extraction model (useful for testing).
func WithModel(m extract.Model) Option {
	return func(a *App) error {
		a.model = m
		return nil
	}
}
