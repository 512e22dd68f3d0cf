// Package appcontext provides the application context interface shared by
// every command, so commands depend on an interface rather than the App.
package appcontext

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/civicmap"
	"github.com/agentstation/civicmap/pkg/extract"
)

// Interface defines what commands need from the application.
type Interface interface {
	// Civicmap returns the default instance, opening it lazily. The app
	// closes it on shutdown.
	Civicmap() (civicmap.Civicmap, error)

	// CivicmapWithOptions opens a new instance with the configured options
	// followed by opts. The caller must close it.
	CivicmapWithOptions(opts ...civicmap.Option) (civicmap.Civicmap, error)

	// Model returns the configured extraction model.
	Model(ctx context.Context) (extract.Model, error)

	// Logger returns the configured logger.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format.
	OutputFormat() string

	// NoColor reports whether colored output is disabled.
	NoColor() bool

	Version() string
	Commit() string
	Date() string
	BuiltBy() string
}
