// Package civicmap reconciles civic development-application observations
// into a durable, deduplicated store of entities.
//
// A Civicmap wires the entity store, the content cache, the identity
// resolver, the merge engine and, when a model is configured, the document
// extractor:
//
//	cm, err := civicmap.New(civicmap.WithDataDir("data"))
//	if err != nil { ... }
//	defer cm.Close()
//	result, err := cm.Reconcile(ctx, reconciler.Batch{City: "Vancouver", Type: entities.TypeRezoning, Observations: obs})
package civicmap

import (
	"context"
	"sync"

	"github.com/agentstation/civicmap/internal/metrics"
	"github.com/agentstation/civicmap/pkg/cache"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/extract"
	"github.com/agentstation/civicmap/pkg/identity"
	"github.com/agentstation/civicmap/pkg/logging"
	"github.com/agentstation/civicmap/pkg/merge"
	"github.com/agentstation/civicmap/pkg/reconciler"
	"github.com/agentstation/civicmap/pkg/store"
)

// Civicmap manages the entity store and reconciles observations into it.
type Civicmap interface {
	// Reconcile merges a batch of observations into the store.
	Reconcile(ctx context.Context, batch reconciler.Batch) (*reconciler.Result, error)

	// Extract runs the model over documents and returns the observations
	// found, in document order, with one error slot per document.
	Extract(ctx context.Context, docs []extract.Document, city string, typ entities.Type) ([]entities.Observation, []error)

	// ReplaceAll discards every entity of (typ, city) and stores list.
	ReplaceAll(ctx context.Context, typ entities.Type, city string, list []entities.Entity) error

	// Entities lists stored entities, newest first. An empty city lists all.
	Entities(typ entities.Type, city string) ([]entities.Entity, error)

	// Entity returns one stored entity.
	Entity(typ entities.Type, id string) (entities.Entity, error)

	// Verify reports invariant violations in the stored entities.
	Verify(typ entities.Type, city string) ([]entities.Issue, error)

	// Cache returns the content cache.
	Cache() cache.Cache

	// WriteMetrics writes the collected metrics to path in the textfile
	// exposition format. It does nothing when no registry was configured.
	WriteMetrics(path string) error

	OnEntityCreated(EntityCreatedHook)
	OnEntityMerged(EntityMergedHook)
	OnEntityRemoved(EntityRemovedHook)

	// Close releases the store and the cache.
	Close() error
}

// civicmap is the default implementation of Civicmap.
type civicmap struct {
	config     *config
	store      store.Store
	cache      cache.Cache
	reconciler reconciler.Reconciler
	extractor  *extract.Extractor
	metrics    *metrics.Recorder

	*hooks
	closeOnce sync.Once
}

// New opens the store and the cache and wires the reconciler.
func New(opts ...Option) (Civicmap, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, errors.WrapValidation("options", err)
		}
	}

	c := &civicmap{config: cfg, hooks: &hooks{}}

	if cfg.registry != nil {
		rec, err := metrics.New(cfg.registry)
		if err != nil {
			return nil, errors.NewConfigError("metrics", "registering collectors", err)
		}
		c.metrics = rec
	}

	var storeOpts []store.Option
	var cacheOpts []cache.Option
	if cfg.inMemory {
		storeOpts = append(storeOpts, store.WithInMemory())
		cacheOpts = append(cacheOpts, cache.WithInMemory())
	}
	cacheOpts = append(cacheOpts, cache.WithClock(cfg.now))

	s, err := store.Open(cfg.storeBackend, cfg.storeDir(), storeOpts...)
	if err != nil {
		return nil, err
	}
	c.store = s

	ch, err := cache.Open(cfg.cacheBackend, cfg.cacheDir(), cacheOpts...)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	c.cache = ch

	if err := c.wire(); err != nil {
		_ = c.Close()
		return nil, err
	}

	logging.Debug().
		Str("data_dir", cfg.dataDir).
		Str("store", string(cfg.storeBackend)).
		Str("cache", string(cfg.cacheBackend)).
		Bool("extraction", c.extractor != nil).
		Msg("Opened civicmap")
	return c, nil
}

func (c *civicmap) wire() error {
	cfg := c.config

	resolver, err := identity.New(identity.WithThreshold(cfg.threshold))
	if err != nil {
		return err
	}

	ropts := []reconciler.Option{
		reconciler.WithResolver(resolver),
		reconciler.WithMerger(merge.New(merge.WithClock(cfg.now))),
		reconciler.WithMetrics(c.metrics),
		reconciler.WithClock(cfg.now),
	}
	if cfg.newID != nil {
		ropts = append(ropts, reconciler.WithIDGenerator(cfg.newID))
	}
	r, err := reconciler.New(c.store, ropts...)
	if err != nil {
		return err
	}
	c.reconciler = r

	if cfg.model != nil {
		e, err := extract.New(cfg.model,
			extract.WithCache(c.cache),
			extract.WithFetcher(cfg.fetcher),
			extract.WithMetrics(c.metrics),
			extract.WithMaxAttempts(cfg.maxAttempts),
			extract.WithConcurrency(cfg.concurrency),
			extract.WithClock(cfg.now),
		)
		if err != nil {
			return err
		}
		c.extractor = e
	}
	return nil
}

// Reconcile implements Civicmap.
func (c *civicmap) Reconcile(ctx context.Context, batch reconciler.Batch) (*reconciler.Result, error) {
	if c.hooks.empty() {
		return c.reconciler.Reconcile(ctx, batch)
	}

	before, err := c.store.List(batch.Type, batch.City)
	if err != nil {
		return nil, err
	}
	result, err := c.reconciler.Reconcile(ctx, batch)
	if err != nil {
		return result, err
	}
	if result.HasChanges() {
		c.fire(ctx, batch.Type, batch.City, before)
	}
	return result, nil
}

// ReplaceAll implements Civicmap.
func (c *civicmap) ReplaceAll(ctx context.Context, typ entities.Type, city string, list []entities.Entity) error {
	if c.hooks.empty() {
		return c.reconciler.ReplaceAll(ctx, typ, city, list)
	}

	before, err := c.store.List(typ, city)
	if err != nil {
		return err
	}
	if err := c.reconciler.ReplaceAll(ctx, typ, city, list); err != nil {
		return err
	}
	c.fire(ctx, typ, city, before)
	return nil
}

func (c *civicmap) fire(ctx context.Context, typ entities.Type, city string, before []entities.Entity) {
	after, err := c.store.List(typ, city)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Skipping entity hooks")
		return
	}
	c.hooks.trigger(before, after)
}

// Extract implements Civicmap.
func (c *civicmap) Extract(ctx context.Context, docs []extract.Document, city string, typ entities.Type) ([]entities.Observation, []error) {
	if c.extractor == nil {
		err := errors.NewConfigError("extract", "no model configured", nil)
		errs := make([]error, len(docs))
		for i := range errs {
			errs[i] = err
		}
		return nil, errs
	}
	ctx = logging.WithBatch(ctx, city, string(typ))
	return c.extractor.ExtractAll(ctx, docs, city, typ)
}

// Entities implements Civicmap.
func (c *civicmap) Entities(typ entities.Type, city string) ([]entities.Entity, error) {
	return c.store.List(typ, city)
}

// Entity implements Civicmap.
func (c *civicmap) Entity(typ entities.Type, id string) (entities.Entity, error) {
	return c.store.Get(typ, id)
}

// Verify implements Civicmap.
func (c *civicmap) Verify(typ entities.Type, city string) ([]entities.Issue, error) {
	list, err := c.store.List(typ, city)
	if err != nil {
		return nil, err
	}
	return entities.Verify(list), nil
}

// Cache implements Civicmap.
func (c *civicmap) Cache() cache.Cache {
	return c.cache
}

// WriteMetrics implements Civicmap.
func (c *civicmap) WriteMetrics(path string) error {
	return errors.WrapIO("write", path, c.metrics.WriteFile(path))
}

// Close implements Civicmap. It is safe to call more than once.
func (c *civicmap) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		if c.cache != nil {
			if err := c.cache.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if c.store != nil {
			if err := c.store.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	if len(errs) > 0 {
		return errors.WrapResource("close", "civicmap", "", errs[0])
	}
	return nil
}
