// Package store persists entities, partitioned by application type.
//
// Every mutating call is atomic on its own and implementations serialize
// writers, but a read-modify-write spanning several calls must be serialized
// by the caller.
package store

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/agentstation/civicmap/pkg/constants"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
)

// Store is the durable, ordered collection of entities.
type Store interface {
	// List returns the entities of a type in stored order, restricted to
	// city unless city is empty.
	List(typ entities.Type, city string) ([]entities.Entity, error)
	// Get returns the entity with the given id.
	Get(typ entities.Type, id string) (entities.Entity, error)
	// Add appends a new entity to its type partition.
	Add(e entities.Entity) error
	// Replace overwrites the entity with the same id in place.
	// It returns a NotFoundError if the id is absent.
	Replace(e entities.Entity) error
	// Sort reorders a partition by latest provenance date, newest first.
	Sort(typ entities.Type) error
	// ReplaceAll discards every entity of (typ, city) and stores list in
	// their place, bypassing any merge.
	ReplaceAll(typ entities.Type, city string, list []entities.Entity) error
	// Close releases the underlying resources.
	Close() error
}

// Backend selects a store implementation.
type Backend string

// Store backends.
const (
	BackendJSON   Backend = "json"
	BackendBadger Backend = "badger"
)

// Open opens the store for backend under dir.
func Open(backend Backend, dir string, opts ...Option) (Store, error) {
	switch backend {
	case BackendJSON, "":
		return OpenFile(dir, opts...)
	case BackendBadger:
		return OpenBadger(filepath.Join(dir, constants.BadgerDirName), opts...)
	default:
		return nil, errors.NewConfigError("store", "unknown backend "+string(backend), nil)
	}
}

// SortByRecency orders entities by latest provenance date, newest first.
// Entities without dated provenance sort last; ties keep their order.
func SortByRecency(list []entities.Entity) {
	slices.SortStableFunc(list, func(a, b entities.Entity) int {
		da, db := a.LatestDate(), b.LatestDate()
		switch {
		case da == db:
			return 0
		case da == "":
			return 1
		case db == "":
			return -1
		default:
			return -strings.Compare(da, db)
		}
	})
}

// partitionName is the file-safe name of a type partition.
func partitionName(typ entities.Type) string {
	return strings.ReplaceAll(string(typ), " ", "-")
}

func validate(e entities.Entity) error {
	if e.ID == "" {
		return errors.NewValidationError("id", e.ID, "entity has no id")
	}
	if !e.Type.Valid() {
		return errors.NewValidationError("type", e.Type, "unknown application type")
	}
	return nil
}

// checkReplacement keeps ids unique within a partition: the replacement may
// not repeat an id, nor reuse one held by an entity kept from another city.
func checkReplacement(kept, replacement []entities.Entity) error {
	seen := make(map[string]string, len(kept)+len(replacement))
	for _, e := range kept {
		seen[e.ID] = e.City
	}
	for _, e := range replacement {
		if city, ok := seen[e.ID]; ok {
			if city == e.City {
				return errors.NewValidationError("id", e.ID, "id is repeated in the replacement")
			}
			return errors.NewValidationError("id", e.ID, "id is already used by an entity in "+city)
		}
		seen[e.ID] = e.City
	}
	return nil
}

func filterCity(list []entities.Entity, city string) []entities.Entity {
	if city == "" {
		return list
	}
	out := make([]entities.Entity, 0, len(list))
	for _, e := range list {
		if e.City == city {
			out = append(out, e)
		}
	}
	return out
}

// options configures a store backend.
type options struct {
	inMemory bool
}

// Option configures a store backend.
type Option func(*options)

// WithInMemory keeps the store in memory only.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

func defaultOptions() *options {
	return &options{}
}

func (o *options) apply(opts ...Option) *options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}
