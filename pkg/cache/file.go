package cache

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/agentstation/civicmap/internal/atomicfile"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/logging"
)

var _ Cache = (*FileCache)(nil)

// FileCache stores every entry in a single JSON array file. The whole file
// is rewritten on each successful Add; a mutex makes it the only writer.
// With WithInMemory the file is never touched.
type FileCache struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	index   map[string]int
	opts    *options
}

// OpenFile loads the cache file at path, creating an empty cache if the file
// does not exist yet.
func OpenFile(path string, opts ...Option) (*FileCache, error) {
	c := &FileCache{
		path:  path,
		index: make(map[string]int),
		opts:  defaultOptions().apply(opts...),
	}
	if c.opts.inMemory {
		return c, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return c, nil
	case err != nil:
		return nil, errors.WrapIO("read", path, err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.entries); err != nil {
			return nil, errors.WrapParse("json", path, err)
		}
	}
	for i, e := range c.entries {
		c.index[e.URL] = i
	}

	logging.Debug().
		Str("path", path).
		Int("entries", len(c.entries)).
		Msg("Loaded content cache")
	return c, nil
}

// Check implements Cache.
func (c *FileCache) Check(url string, cov Coverage) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[url]
	if !ok {
		return "", false, nil
	}
	e := c.entries[i]
	if !e.Coverage().Satisfies(cov) {
		return "", false, nil
	}
	return e.Text, true, nil
}

// Add implements Cache.
func (c *FileCache) Add(url, text string, cov Coverage, kind Kind) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var existing *Entry
	i, found := c.index[url]
	if found {
		existing = &c.entries[i]
	}

	entry, changed := upsert(existing, url, text, cov, kind, c.opts.now())
	if !changed {
		return false, nil
	}

	// The entry becomes visible only once the file holds it.
	next := make([]Entry, len(c.entries), len(c.entries)+1)
	copy(next, c.entries)
	if found {
		next[i] = entry
	} else {
		i = len(next)
		next = append(next, entry)
	}

	if err := c.flush(next); err != nil {
		return false, err
	}
	c.entries = next
	c.index[url] = i
	return true, nil
}

// Len returns the number of cached entries.
func (c *FileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close implements Cache.
func (c *FileCache) Close() error {
	return nil
}

func (c *FileCache) flush(entries []Entry) error {
	if c.opts.inMemory {
		return nil
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.WrapParse("json", c.path, err)
	}
	return atomicfile.Write(c.path, data)
}
