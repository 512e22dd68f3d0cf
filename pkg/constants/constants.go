// Package constants provides shared constants used throughout the civicmap codebase.
// This includes thresholds, limits, file permissions and file names that
// must stay consistent between the reconciler, the stores and the CLI.
package constants

import "time"

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Reconciliation constants
const (
	// AddressSimilarityThreshold is the minimum similarity (exclusive) for a fuzzy address match
	AddressSimilarityThreshold = 0.7

	// DateLayout is the layout of every date field and provenance date (YYYY-MM-DD)
	DateLayout = "2006-01-02"
)

// Limit constants define various limits and capacities
const (
	// MaxAttempts is the default number of model calls made before an
	// observation is reported as SchemaRepairExhausted
	MaxAttempts = 3

	// DefaultConcurrency is the default window of concurrent document/model operations
	DefaultConcurrency = 5

	// MaxConcurrency caps the configured concurrency window
	MaxConcurrency = 50

	// MaxLoggedFragment is the maximum number of bytes of model output logged on failure
	MaxLoggedFragment = 200

	// MaxDocumentBytes caps the size of a downloaded source document
	MaxDocumentBytes = 32 << 20
)

// Timeout constants
const (
	// ExtractTimeout bounds a single model call
	ExtractTimeout = 2 * time.Minute

	// ShutdownTimeout bounds graceful shutdown of the CLI
	ShutdownTimeout = 5 * time.Second

	// DefaultHTTPTimeout bounds a single source document download
	DefaultHTTPTimeout = 60 * time.Second

	// ResponseCacheTTL is how long a downloaded document body is reused within a run
	ResponseCacheTTL = 10 * time.Minute
)

// Storage constants
const (
	// DefaultDataDir is where entity stores and the content cache live by default
	DefaultDataDir = "data"

	// CacheFileName is the JSON file name of the content cache
	CacheFileName = "cache.json"

	// BadgerDirName is the directory name of the embedded key-value store
	BadgerDirName = "kv"

	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "CIVICMAP"
)
