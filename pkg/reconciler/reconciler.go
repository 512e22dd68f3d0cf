// Package reconciler turns batches of observations into durable entities.
// For each observation it resolves identity against the store, merges or
// creates, and persists, then re-sorts the affected partition by recency.
// Bad observations are skipped and reported, never fatal to the batch.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/identity"
	"github.com/agentstation/civicmap/pkg/logging"
	"github.com/agentstation/civicmap/pkg/store"
)

// Reconciler is the main interface for reconciling observations into the store.
type Reconciler interface {
	// Reconcile merges a batch of observations for one city and type.
	Reconcile(ctx context.Context, batch Batch) (*Result, error)
	// ReplaceAll discards every entity of (typ, city) and stores list in
	// their place without merging.
	ReplaceAll(ctx context.Context, typ entities.Type, city string, list []entities.Entity) error
}

// Batch is a set of observations from one city and application type.
type Batch struct {
	City         string
	Type         entities.Type
	Observations []entities.Observation

	// Optional [Start, End) filter on provenance dates, YYYY-MM-DD.
	Start string
	End   string
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	mu    sync.Mutex // single logical writer
	store store.Store
	opts  *options
}

// New creates a new Reconciler writing to s.
func New(s store.Store, opts ...Option) (Reconciler, error) {
	if s == nil {
		return nil, &errors.ValidationError{Field: "store", Message: "cannot be nil"}
	}
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &reconciler{store: s, opts: o}, nil
}

// reconcileContext holds shared state for one batch.
type reconcileContext struct {
	batch      Batch
	filter     *filter
	candidates []entities.Entity
	logger     *zerolog.Logger
	result     *Result
}

// Reconcile implements Reconciler.
func (r *reconciler) Reconcile(ctx context.Context, batch Batch) (*Result, error) {
	if !batch.Type.Valid() {
		return nil, errors.NewValidationError("type", batch.Type, "unknown application type")
	}
	if batch.City == "" {
		return nil, errors.NewValidationError("city", batch.City, "city is required")
	}
	f, err := newFilter(batch.Start, batch.End)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ctx = logging.WithBatch(ctx, batch.City, string(batch.Type))
	logger := logging.FromContext(ctx)

	candidates, err := r.store.List(batch.Type, batch.City)
	if err != nil {
		return nil, errors.WrapResource("load", "store", string(batch.Type), err)
	}

	rctx := &reconcileContext{
		batch:      batch,
		filter:     f,
		candidates: candidates,
		logger:     logger,
		result:     NewResult(batch.City, batch.Type),
	}

	logger.Info().
		Int("observations", len(batch.Observations)).
		Int("candidates", len(candidates)).
		Msg("Reconciling observations")

	for i, obs := range batch.Observations {
		if err := ctx.Err(); err != nil {
			rctx.result.Errors = append(rctx.result.Errors, err)
			break
		}
		item := r.reconcileOne(rctx, i, obs)
		rctx.result.add(item)
		r.opts.metrics.Observation(string(batch.Type), string(item.Outcome))
	}

	if rctx.result.HasChanges() {
		if err := r.store.Sort(batch.Type); err != nil {
			rctx.result.Errors = append(rctx.result.Errors, err)
			logger.Error().Err(err).Msg("Failed to sort entities")
		}
	}

	rctx.result.Finalize()
	r.opts.metrics.Batch(string(batch.Type), rctx.result.Metadata.Duration)

	stats := rctx.result.Metadata.Stats
	logger.Info().
		Int("created", stats.Created).
		Int("merged", stats.Merged).
		Int("skipped", stats.Skipped()).
		Int("errors", len(rctx.result.Errors)).
		Dur("duration", rctx.result.Metadata.Duration).
		Msg(rctx.result.Summary())

	return rctx.result, nil
}

// reconcileOne processes a single observation.
func (r *reconciler) reconcileOne(rctx *reconcileContext, index int, obs entities.Observation) Item {
	logger := rctx.logger.With().Int("observation", index).Logger()

	if obs.City == "" {
		obs.City = rctx.batch.City
	}
	if obs.Type == "" {
		obs.Type = rctx.batch.Type
	}
	if obs.Type != rctx.batch.Type || obs.City != rctx.batch.City {
		msg := fmt.Sprintf("observation for (%s, %s) in batch for (%s, %s)", obs.City, obs.Type, rctx.batch.City, rctx.batch.Type)
		logger.Warn().Msg(msg)
		rctx.result.Warnings = append(rctx.result.Warnings, msg)
		return Item{Index: index, Outcome: OutcomeInvalid, Error: msg}
	}

	if !rctx.filter.keep(obs) {
		logger.Debug().Msg("Observation outside date range")
		return Item{Index: index, Outcome: OutcomeFiltered}
	}

	if obs.Address == "" {
		err := &errors.MissingAddressError{City: obs.City, ApplicationID: deref(obs.ApplicationID)}
		logger.Warn().Err(err).Msg("Skipping observation without address")
		rctx.result.Warnings = append(rctx.result.Warnings, err.Error())
		return Item{Index: index, Outcome: OutcomeMissingAddress, Error: err.Error()}
	}

	match := r.opts.resolver.Resolve(obs, rctx.candidates)
	if !match.Found() {
		return r.create(rctx, index, obs, logger)
	}
	return r.mergeInto(rctx, index, obs, match, logger)
}

func (r *reconciler) create(rctx *reconcileContext, index int, obs entities.Observation, logger zerolog.Logger) Item {
	e := entities.NewEntity(r.opts.newID(), obs, r.opts.now())
	if !e.Status.Valid() {
		msg := fmt.Sprintf("observation at %q has no usable status", obs.Address)
		logger.Warn().Str("address", obs.Address).Msg("Skipping observation without status")
		rctx.result.Warnings = append(rctx.result.Warnings, msg)
		return Item{Index: index, Outcome: OutcomeInvalid, Error: msg}
	}

	if err := r.store.Add(e); err != nil {
		logger.Error().Err(err).Str("entity_id", e.ID).Msg("Failed to add entity")
		rctx.result.Errors = append(rctx.result.Errors, err)
		return Item{Index: index, Outcome: OutcomeFailed, EntityID: e.ID, Error: err.Error()}
	}

	rctx.candidates = append(rctx.candidates, e)
	logger.Debug().Str("entity_id", e.ID).Str("address", e.Address).Msg("Created entity")
	return Item{Index: index, Outcome: OutcomeCreated, EntityID: e.ID}
}

func (r *reconciler) mergeInto(rctx *reconcileContext, index int, obs entities.Observation, match identity.Match, logger zerolog.Logger) Item {
	existing := *match.Entity
	merged, decision := r.opts.merger.Merge(existing, obs)
	if !merged.Status.Valid() {
		msg := fmt.Sprintf("merge into %s at %q leaves no usable status", existing.ID, obs.Address)
		logger.Warn().Str("entity_id", existing.ID).Str("address", obs.Address).Msg("Skipping merge without status")
		rctx.result.Warnings = append(rctx.result.Warnings, msg)
		return Item{Index: index, Outcome: OutcomeInvalid, EntityID: existing.ID, Error: msg}
	}

	// A StoreLookupFailure is fatal for this observation only.
	if err := r.store.Replace(merged); err != nil {
		logger.Error().Err(err).Str("entity_id", existing.ID).Msg("Failed to replace entity")
		rctx.result.Errors = append(rctx.result.Errors, err)
		return Item{Index: index, Outcome: OutcomeFailed, EntityID: existing.ID, Error: err.Error()}
	}

	for i := range rctx.candidates {
		if rctx.candidates[i].ID == merged.ID {
			rctx.candidates[i] = merged
			break
		}
	}

	logger.Debug().
		Str("entity_id", merged.ID).
		Str("tier", match.Tier.String()).
		Str("preferred", string(decision.Preferred)).
		Str("status", string(merged.Status)).
		Msg("Merged observation")

	item := matchItem(index, OutcomeMerged, merged.ID, match)
	item.Decision = &decision
	return item
}

// ReplaceAll implements Reconciler.
func (r *reconciler) ReplaceAll(ctx context.Context, typ entities.Type, city string, list []entities.Entity) error {
	if !typ.Valid() {
		return errors.NewValidationError("type", typ, "unknown application type")
	}
	if city == "" {
		return errors.NewValidationError("city", city, "city is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	now := r.opts.now()
	prepared := make([]entities.Entity, len(list))
	for i, e := range list {
		e = e.Clone()
		if e.ID == "" {
			e.ID = r.opts.newID()
		}
		if e.City == "" {
			e.City = city
		}
		if e.Type == "" {
			e.Type = typ
		}
		if e.CreateDate.IsZero() {
			e.CreateDate = now
		}
		e.UpdateDate = now
		prepared[i] = e
	}

	if err := r.store.ReplaceAll(typ, city, prepared); err != nil {
		return err
	}

	logging.FromContext(ctx).Warn().
		Str("city", city).
		Str("type", string(typ)).
		Int("entities", len(prepared)).
		Dur("duration", time.Since(start)).
		Msg("Replaced all entities")
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
