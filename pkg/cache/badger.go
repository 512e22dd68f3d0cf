package cache

import (
	"encoding/json"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/agentstation/civicmap/pkg/errors"
)

var _ Cache = (*BadgerCache)(nil)

const badgerPrefix = "cache/"

// BadgerCache stores each entry under its URL in a badger database.
type BadgerCache struct {
	mu   sync.Mutex // serializes read-modify-write in Add
	db   *badger.DB
	opts *options
	own  bool
}

// OpenBadger opens (or creates) a badger-backed cache in dir.
func OpenBadger(dir string, opts ...Option) (*BadgerCache, error) {
	o := defaultOptions().apply(opts...)

	bopts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" || o.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.WrapIO("open", dir, err)
	}
	return &BadgerCache{db: db, opts: o, own: true}, nil
}

// NewBadger wraps an already open database. Close leaves db open.
func NewBadger(db *badger.DB, opts ...Option) *BadgerCache {
	return &BadgerCache{db: db, opts: defaultOptions().apply(opts...)}
}

func cacheKey(url string) []byte {
	return []byte(badgerPrefix + url)
}

func getEntry(txn *badger.Txn, url string) (*Entry, error) {
	item, err := txn.Get(cacheKey(url))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var e Entry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	}); err != nil {
		return nil, err
	}
	return &e, nil
}

// Check implements Cache.
func (c *BadgerCache) Check(url string, cov Coverage) (string, bool, error) {
	var (
		text string
		ok   bool
	)
	err := c.db.View(func(txn *badger.Txn) error {
		e, err := getEntry(txn, url)
		if err != nil || e == nil {
			return err
		}
		if e.Coverage().Satisfies(cov) {
			text, ok = e.Text, true
		}
		return nil
	})
	if err != nil {
		return "", false, errors.WrapResource("check", "cache", url, err)
	}
	return text, ok, nil
}

// Add implements Cache.
func (c *BadgerCache) Add(url, text string, cov Coverage, kind Kind) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var changed bool
	err := c.db.Update(func(txn *badger.Txn) error {
		existing, err := getEntry(txn, url)
		if err != nil {
			return err
		}

		var entry Entry
		entry, changed = upsert(existing, url, text, cov, kind, c.opts.now())
		if !changed {
			return nil
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return txn.Set(cacheKey(url), data)
	})
	if err != nil {
		return false, errors.WrapResource("add", "cache", url, err)
	}
	return changed, nil
}

// Close implements Cache.
func (c *BadgerCache) Close() error {
	if !c.own {
		return nil
	}
	return c.db.Close()
}
