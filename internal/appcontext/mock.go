package appcontext

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/civicmap"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/extract"
)

// Mock implements Interface for command tests. Nil function fields return
// zero values.
type Mock struct {
	CivicmapFunc            func() (civicmap.Civicmap, error)
	CivicmapWithOptionsFunc func(...civicmap.Option) (civicmap.Civicmap, error)
	ModelFunc               func(context.Context) (extract.Model, error)
	LoggerFunc              func() *zerolog.Logger
	Format                  string
	DisableColor            bool
	VersionString           string
}

var _ Interface = (*Mock)(nil)

// Civicmap implements Interface.
func (m *Mock) Civicmap() (civicmap.Civicmap, error) {
	if m.CivicmapFunc != nil {
		return m.CivicmapFunc()
	}
	return nil, errors.NewConfigError("mock", "no civicmap", nil)
}

// CivicmapWithOptions implements Interface.
func (m *Mock) CivicmapWithOptions(opts ...civicmap.Option) (civicmap.Civicmap, error) {
	if m.CivicmapWithOptionsFunc != nil {
		return m.CivicmapWithOptionsFunc(opts...)
	}
	return nil, errors.NewConfigError("mock", "no civicmap", nil)
}

// Model implements Interface.
func (m *Mock) Model(ctx context.Context) (extract.Model, error) {
	if m.ModelFunc != nil {
		return m.ModelFunc(ctx)
	}
	return nil, errors.NewConfigError("mock", "no model", nil)
}

// Logger implements Interface.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	l := zerolog.Nop()
	return &l
}

// OutputFormat implements Interface.
func (m *Mock) OutputFormat() string { return m.Format }

// NoColor implements Interface.
func (m *Mock) NoColor() bool { return m.DisableColor }

// Version implements Interface.
func (m *Mock) Version() string { return m.VersionString }

// Commit implements Interface.
func (m *Mock) Commit() string { return "" }

// Date implements Interface.
func (m *Mock) Date() string { return "" }

// BuiltBy implements Interface.
func (m *Mock) BuiltBy() string { return "" }
