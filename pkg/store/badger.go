package store

import (
	"encoding/json"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
)

var _ Store = (*BadgerStore)(nil)

// BadgerStore keeps each entity under its own key and the partition order
// as a separate id list, so a single update touches one entity.
//
// Key layout:
//
//	entity/<partition>/<id> -> entity JSON
//	order/<partition>       -> JSON array of ids
type BadgerStore struct {
	mu  sync.Mutex
	db  *badger.DB
	own bool
}

// OpenBadger opens (or creates) a badger-backed store in dir. An empty dir
// or WithInMemory keeps everything in memory.
func OpenBadger(dir string, opts ...Option) (*BadgerStore, error) {
	o := defaultOptions().apply(opts...)

	bopts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" || o.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.WrapIO("open", dir, err)
	}
	return &BadgerStore{db: db, own: true}, nil
}

// NewBadger wraps an already open database. Close leaves db open.
func NewBadger(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func entityKey(typ entities.Type, id string) []byte {
	return []byte("entity/" + partitionName(typ) + "/" + id)
}

func orderKey(typ entities.Type) []byte {
	return []byte("order/" + partitionName(typ))
}

func readJSON(txn *badger.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func writeJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func readOrder(txn *badger.Txn, typ entities.Type) ([]string, error) {
	var ids []string
	_, err := readJSON(txn, orderKey(typ), &ids)
	return ids, err
}

func readAll(txn *badger.Txn, typ entities.Type) ([]entities.Entity, error) {
	ids, err := readOrder(txn, typ)
	if err != nil {
		return nil, err
	}
	list := make([]entities.Entity, 0, len(ids))
	for _, id := range ids {
		var e entities.Entity
		found, err := readJSON(txn, entityKey(typ, id), &e)
		if err != nil {
			return nil, err
		}
		if found {
			list = append(list, e)
		}
	}
	return list, nil
}

// writeAll stores list as the complete partition, deleting entities that
// are no longer part of it.
func writeAll(txn *badger.Txn, typ entities.Type, list []entities.Entity) error {
	previous, err := readOrder(txn, typ)
	if err != nil {
		return err
	}

	ids := make([]string, len(list))
	keep := make(map[string]struct{}, len(list))
	for i, e := range list {
		ids[i] = e.ID
		keep[e.ID] = struct{}{}
		if err := writeJSON(txn, entityKey(typ, e.ID), e); err != nil {
			return err
		}
	}
	for _, id := range previous {
		if _, ok := keep[id]; !ok {
			if err := txn.Delete(entityKey(typ, id)); err != nil {
				return err
			}
		}
	}
	return writeJSON(txn, orderKey(typ), ids)
}

// List implements Store.
func (s *BadgerStore) List(typ entities.Type, city string) ([]entities.Entity, error) {
	var list []entities.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		list, err = readAll(txn, typ)
		return err
	})
	if err != nil {
		return nil, errors.WrapResource("list", "entity", "", err)
	}
	return filterCity(list, city), nil
}

// Get implements Store.
func (s *BadgerStore) Get(typ entities.Type, id string) (entities.Entity, error) {
	var (
		e     entities.Entity
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = readJSON(txn, entityKey(typ, id), &e)
		return err
	})
	if err != nil {
		return entities.Entity{}, errors.WrapResource("get", "entity", id, err)
	}
	if !found {
		return entities.Entity{}, errors.NewNotFoundError("entity", id)
	}
	return e, nil
}

// Add implements Store.
func (s *BadgerStore) Add(e entities.Entity) error {
	if err := validate(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update("add", e.ID, func(txn *badger.Txn) error {
		var existing entities.Entity
		found, err := readJSON(txn, entityKey(e.Type, e.ID), &existing)
		if err != nil {
			return err
		}
		if found {
			return errors.ErrAlreadyExists
		}

		ids, err := readOrder(txn, e.Type)
		if err != nil {
			return err
		}
		if err := writeJSON(txn, entityKey(e.Type, e.ID), e); err != nil {
			return err
		}
		return writeJSON(txn, orderKey(e.Type), append(ids, e.ID))
	})
}

// Replace implements Store.
func (s *BadgerStore) Replace(e entities.Entity) error {
	if err := validate(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var missing bool
	err := s.update("replace", e.ID, func(txn *badger.Txn) error {
		_, err := txn.Get(entityKey(e.Type, e.ID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			missing = true
			return nil
		}
		if err != nil {
			return err
		}
		return writeJSON(txn, entityKey(e.Type, e.ID), e)
	})
	if err != nil {
		return err
	}
	if missing {
		return errors.NewNotFoundError("entity", e.ID)
	}
	return nil
}

// Sort implements Store.
func (s *BadgerStore) Sort(typ entities.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update("sort", "", func(txn *badger.Txn) error {
		list, err := readAll(txn, typ)
		if err != nil {
			return err
		}
		SortByRecency(list)
		ids := make([]string, len(list))
		for i, e := range list {
			ids[i] = e.ID
		}
		return writeJSON(txn, orderKey(typ), ids)
	})
}

// ReplaceAll implements Store.
func (s *BadgerStore) ReplaceAll(typ entities.Type, city string, replacement []entities.Entity) error {
	for _, e := range replacement {
		if err := validate(e); err != nil {
			return err
		}
		if e.Type != typ || e.City != city {
			return errors.NewValidationError("entity", e.ID, "entity does not belong to the replaced (type, city) pair")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update("replace all", city, func(txn *badger.Txn) error {
		list, err := readAll(txn, typ)
		if err != nil {
			return err
		}
		next := make([]entities.Entity, 0, len(list)+len(replacement))
		for _, e := range list {
			if e.City != city {
				next = append(next, e)
			}
		}
		if err := checkReplacement(next, replacement); err != nil {
			return err
		}
		next = append(next, replacement...)
		SortByRecency(next)
		return writeAll(txn, typ, next)
	})
}

func (s *BadgerStore) update(op, id string, fn func(txn *badger.Txn) error) error {
	if err := s.db.Update(fn); err != nil {
		return errors.WrapResource(op, "entity", id, err)
	}
	return nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	if !s.own {
		return nil
	}
	return s.db.Close()
}
