package reconciler

import (
	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/agentstation/civicmap/internal/metrics"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/identity"
	"github.com/agentstation/civicmap/pkg/merge"
)

// options configures a reconciler.
type options struct {
	resolver *identity.Resolver
	merger   *merge.Merger
	metrics  *metrics.Recorder
	newID    func() string
	now      func() utc.Time
}

func defaultOptions() (*options, error) {
	resolver, err := identity.New()
	if err != nil {
		return nil, err
	}
	return &options{
		resolver: resolver,
		merger:   merge.New(),
		newID:    uuid.NewString,
		now:      utc.Now,
	}, nil
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	o, err := defaultOptions()
	if err != nil {
		return nil, err
	}
	return o.apply(opts...)
}

// WithResolver sets the identity resolver.
func WithResolver(r *identity.Resolver) Option {
	return func(o *options) error {
		if r == nil {
			return &errors.ValidationError{Field: "resolver", Message: "cannot be nil"}
		}
		o.resolver = r
		return nil
	}
}

// WithMerger sets the merge engine.
func WithMerger(m *merge.Merger) Option {
	return func(o *options) error {
		if m == nil {
			return &errors.ValidationError{Field: "merger", Message: "cannot be nil"}
		}
		o.merger = m
		return nil
	}
}

// WithMetrics records outcomes on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *options) error {
		o.metrics = r
		return nil
	}
}

// WithIDGenerator overrides how new entity ids are assigned.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) error {
		if fn == nil {
			return &errors.ValidationError{Field: "id generator", Message: "cannot be nil"}
		}
		o.newID = fn
		return nil
	}
}

// WithClock overrides the clock used for new entities.
func WithClock(now func() utc.Time) Option {
	return func(o *options) error {
		if now == nil {
			return &errors.ValidationError{Field: "clock", Message: "cannot be nil"}
		}
		o.now = now
		return nil
	}
}
