package civicmap

import (
	"path/filepath"

	"github.com/agentstation/utc"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentstation/civicmap/pkg/cache"
	"github.com/agentstation/civicmap/pkg/constants"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/extract"
	"github.com/agentstation/civicmap/pkg/store"
)

// config holds the resolved options of a Civicmap.
type config struct {
	dataDir      string
	storeBackend store.Backend
	cacheBackend cache.Backend
	inMemory     bool

	threshold   float64
	maxAttempts int
	concurrency int

	model    extract.Model
	fetcher  extract.Fetcher
	registry *prometheus.Registry
	newID    func() string
	now      func() utc.Time
}

func defaultConfig() *config {
	return &config{
		dataDir:      constants.DefaultDataDir,
		storeBackend: store.BackendJSON,
		cacheBackend: cache.BackendJSON,
		threshold:    constants.AddressSimilarityThreshold,
		maxAttempts:  constants.MaxAttempts,
		concurrency:  constants.DefaultConcurrency,
		fetcher:      extract.NewSourceFetcher(),
		now:          utc.Now,
	}
}

func (c *config) storeDir() string { return filepath.Join(c.dataDir, "entities") }
func (c *config) cacheDir() string { return filepath.Join(c.dataDir, "cache") }

// Option is a function that configures a Civicmap instance.
type Option func(*config) error

// WithDataDir sets where the entity store and content cache live.
func WithDataDir(dir string) Option {
	return func(c *config) error {
		if dir == "" {
			return &errors.ValidationError{Field: "dataDir", Message: "cannot be empty"}
		}
		c.dataDir = dir
		return nil
	}
}

// WithStoreBackend selects the entity store backend.
func WithStoreBackend(b store.Backend) Option {
	return func(c *config) error {
		c.storeBackend = b
		return nil
	}
}

// WithCacheBackend selects the content cache backend.
func WithCacheBackend(b cache.Backend) Option {
	return func(c *config) error {
		c.cacheBackend = b
		return nil
	}
}

// WithInMemory keeps the store and cache in memory. Nothing is written to
// the data directory.
func WithInMemory() Option {
	return func(c *config) error {
		c.inMemory = true
		return nil
	}
}

// WithSimilarityThreshold sets the fuzzy address match threshold.
func WithSimilarityThreshold(threshold float64) Option {
	return func(c *config) error {
		c.threshold = threshold
		return nil
	}
}

// WithMaxAttempts bounds model calls per document.
func WithMaxAttempts(n int) Option {
	return func(c *config) error {
		if n < 1 {
			return errors.NewValidationError("maxAttempts", n, "must be at least 1")
		}
		c.maxAttempts = n
		return nil
	}
}

// WithConcurrency bounds documents extracted at once.
func WithConcurrency(n int) Option {
	return func(c *config) error {
		if n < 1 || n > constants.MaxConcurrency {
			return errors.NewValidationError("concurrency", n, "out of range")
		}
		c.concurrency = n
		return nil
	}
}

// WithModel enables document extraction through m.
func WithModel(m extract.Model) Option {
	return func(c *config) error {
		c.model = m
		return nil
	}
}

// WithFetcher sets how uncached document text is obtained.
func WithFetcher(f extract.Fetcher) Option {
	return func(c *config) error {
		c.fetcher = f
		return nil
	}
}

// WithRegistry records metrics on reg.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *config) error {
		c.registry = reg
		return nil
	}
}

// WithIDGenerator overrides how new entity ids are made.
func WithIDGenerator(fn func() string) Option {
	return func(c *config) error {
		c.newID = fn
		return nil
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() utc.Time) Option {
	return func(c *config) error {
		if now == nil {
			return &errors.ValidationError{Field: "clock", Message: "cannot be nil"}
		}
		c.now = now
		return nil
	}
}
