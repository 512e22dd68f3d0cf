// Package cache persists document text already extracted from a source URL
// together with the page coverage it represents, so identical or narrower
// requests are served without re-fetching or re-processing the document.
//
// Coverage only ever grows: Add replaces a stored entry only when the new
// coverage is a strict superset of the stored one.
package cache

import (
	"path/filepath"
	"slices"

	"github.com/agentstation/utc"

	"github.com/agentstation/civicmap/pkg/constants"
	"github.com/agentstation/civicmap/pkg/errors"
)

// Kind is how the cached text was produced.
type Kind string

// Cache entry kinds.
const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Coverage describes the page extent of an extraction: either the first
// MaxPages pages, or an explicit set of 1-based page numbers when Pages is
// non-nil.
type Coverage struct {
	MaxPages int   `json:"maxPages,omitempty" yaml:"maxPages,omitempty"`
	Pages    []int `json:"pages,omitempty" yaml:"pages,omitempty"`
}

// FirstPages returns coverage of the first n pages.
func FirstPages(n int) Coverage {
	return Coverage{MaxPages: n}
}

// PageSet returns coverage of exactly the given pages.
func PageSet(pages ...int) Coverage {
	if pages == nil {
		pages = []int{}
	}
	return Coverage{Pages: pages}
}

// Explicit reports whether the coverage is an explicit page set.
func (c Coverage) Explicit() bool {
	return c.Pages != nil
}

func (c Coverage) has(page int) bool {
	if c.Explicit() {
		return slices.Contains(c.Pages, page)
	}
	return page >= 1 && page <= c.MaxPages
}

// Satisfies reports whether text extracted with coverage c can answer a
// request for coverage req.
func (c Coverage) Satisfies(req Coverage) bool {
	if !req.Explicit() {
		if !c.Explicit() {
			return req.MaxPages <= c.MaxPages
		}
		for p := 1; p <= req.MaxPages; p++ {
			if !c.has(p) {
				return false
			}
		}
		return true
	}
	for _, p := range req.Pages {
		if !c.has(p) {
			return false
		}
	}
	return true
}

// StrictSuperset reports whether c covers everything old does and more.
func (c Coverage) StrictSuperset(old Coverage) bool {
	return c.Satisfies(old) && !old.Satisfies(c)
}

// Entry is a cached extraction.
type Entry struct {
	URL        string   `json:"url" yaml:"url"`
	Text       string   `json:"text" yaml:"text"`
	MaxPages   *int     `json:"maxPages" yaml:"maxPages"`
	Pages      []int    `json:"pages" yaml:"pages"`
	Type       Kind     `json:"type" yaml:"type"`
	CreateDate utc.Time `json:"createDate" yaml:"createDate"`
	UpdateDate utc.Time `json:"updateDate" yaml:"updateDate"`
}

// Coverage returns the entry's coverage.
func (e Entry) Coverage() Coverage {
	if e.Pages != nil {
		return Coverage{Pages: e.Pages}
	}
	if e.MaxPages != nil {
		return Coverage{MaxPages: *e.MaxPages}
	}
	return Coverage{}
}

func (e *Entry) setCoverage(c Coverage) {
	if c.Explicit() {
		e.Pages = slices.Clone(c.Pages)
		e.MaxPages = nil
		return
	}
	n := c.MaxPages
	e.MaxPages = &n
	e.Pages = nil
}

// upsert applies the monotonic coverage rule. It returns the entry to store
// and whether anything changed.
func upsert(existing *Entry, url, text string, cov Coverage, kind Kind, now utc.Time) (Entry, bool) {
	if existing != nil && !cov.StrictSuperset(existing.Coverage()) {
		return *existing, false
	}

	e := Entry{URL: url, Text: text, Type: kind, CreateDate: now, UpdateDate: now}
	if existing != nil {
		e.CreateDate = existing.CreateDate
	}
	e.setCoverage(cov)
	return e, true
}

// Cache is the content cache. Implementations serialize writers.
type Cache interface {
	// Check returns the cached text if the stored coverage satisfies cov.
	Check(url string, cov Coverage) (string, bool, error)
	// Add stores text for url unless the stored coverage already covers cov.
	// It reports whether the entry was written.
	Add(url, text string, cov Coverage, kind Kind) (bool, error)
	// Close releases the underlying resources.
	Close() error
}

// Backend selects a cache implementation.
type Backend string

// Cache backends.
const (
	BackendJSON   Backend = "json"
	BackendBadger Backend = "badger"
)

// Open opens the cache for backend under dir.
func Open(backend Backend, dir string, opts ...Option) (Cache, error) {
	switch backend {
	case BackendJSON, "":
		return OpenFile(filepath.Join(dir, constants.CacheFileName), opts...)
	case BackendBadger:
		return OpenBadger(filepath.Join(dir, constants.BadgerDirName), opts...)
	default:
		return nil, errors.NewConfigError("cache", "unknown backend "+string(backend), nil)
	}
}

// options configures a cache backend.
type options struct {
	now      func() utc.Time
	inMemory bool
}

// Option configures a cache backend.
type Option func(*options)

// WithClock overrides the clock used for entry timestamps.
func WithClock(now func() utc.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithInMemory keeps the cache in memory only.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

func defaultOptions() *options {
	return &options{now: utc.Now}
}

func (o *options) apply(opts ...Option) *options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}
