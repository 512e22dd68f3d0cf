// Package extract turns civic document text into validated observations by
// calling a language model, validating its JSON output, and retrying a
// bounded number of times when the output does not validate.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agentstation/utc"

	"github.com/agentstation/civicmap/internal/metrics"
	"github.com/agentstation/civicmap/internal/pool"
	"github.com/agentstation/civicmap/pkg/cache"
	"github.com/agentstation/civicmap/pkg/constants"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/logging"
	"github.com/agentstation/civicmap/pkg/schema"
)

// Extractor extracts observations from documents.
type Extractor struct {
	model       Model
	cache       cache.Cache
	fetcher     Fetcher
	metrics     *metrics.Recorder
	maxAttempts int
	concurrency int
	now         func() utc.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCache serves and stores document text through c.
func WithCache(c cache.Cache) Option {
	return func(e *Extractor) { e.cache = c }
}

// WithFetcher sets how missing document text is obtained.
func WithFetcher(f Fetcher) Option {
	return func(e *Extractor) { e.fetcher = f }
}

// WithMetrics records attempts on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Extractor) { e.metrics = r }
}

// WithMaxAttempts bounds the model calls per document.
func WithMaxAttempts(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithConcurrency bounds documents processed at once by ExtractAll.
func WithConcurrency(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithClock overrides the clock used for ObservedAt.
func WithClock(now func() utc.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New creates an Extractor calling model.
func New(model Model, opts ...Option) (*Extractor, error) {
	if model == nil {
		return nil, &errors.ValidationError{Field: "model", Message: "cannot be nil"}
	}
	e := &Extractor{
		model:       model,
		fetcher:     NewSourceFetcher(),
		maxAttempts: constants.MaxAttempts,
		concurrency: constants.DefaultConcurrency,
		now:         utc.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract returns the observations found in doc for city and typ.
// Observations whose required fields never validate are dropped and logged.
// If nothing usable comes back after every attempt, a SchemaRepairError is
// returned.
func (e *Extractor) Extract(ctx context.Context, doc Document, city string, typ entities.Type) ([]entities.Observation, error) {
	ctx = logging.WithSource(ctx, doc.URL)
	logger := logging.FromContext(ctx)

	text, err := e.text(ctx, doc)
	if err != nil {
		return nil, err
	}

	prompt := Prompt(city, typ, text)

	var (
		value any
		raw   string
	)
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		raw, err = e.generate(ctx, prompt)
		if err != nil {
			e.metrics.Extraction("error")
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn().Err(err).Int("attempt", attempt).Msg("Model call failed")
			continue
		}

		v, perr := schema.Parse(raw)
		if perr != nil {
			e.metrics.Extraction("invalid")
			logger.Warn().Int("attempt", attempt).Str("fragment", truncate(raw)).Msg("Model output is not JSON")
			continue
		}

		res := schema.Check(&v, schema.ResponseSchema())
		value = v
		if res.Valid {
			e.metrics.Extraction("valid")
			return e.decode(doc, city, typ, v)
		}

		e.metrics.Extraction("invalid")
		logger.Debug().Int("attempt", attempt).Int("issues", len(res.Issues)).Msg("Model output failed validation")
	}

	if value == nil {
		if raw == "" && err != nil {
			return nil, err
		}
		return nil, errors.NewSchemaRepairError(doc.URL, e.maxAttempts, strings.TrimSpace(raw))
	}

	// Degrade rather than fail: keep what validates.
	res := schema.Prune(&value, schema.ResponseSchema())
	for _, issue := range res.Issues {
		if issue.Required {
			repairErr := errors.NewSchemaRepairError(doc.URL, e.maxAttempts, issue.String())
			logger.Warn().Err(repairErr).Str("path", issue.Path).Msg("Dropping observation that never validated")
		}
	}
	if !res.Valid {
		return nil, errors.NewSchemaRepairError(doc.URL, e.maxAttempts, strings.TrimSpace(raw))
	}
	return e.decode(doc, city, typ, value)
}

// ExtractAll extracts every document with bounded concurrency. Results keep
// document order; a failed document contributes nothing and its error is
// returned at the same index.
func (e *Extractor) ExtractAll(ctx context.Context, docs []Document, city string, typ entities.Type) ([]entities.Observation, []error) {
	results, errs := pool.Map(ctx, e.concurrency, docs, func(ctx context.Context, doc Document) ([]entities.Observation, error) {
		return e.Extract(ctx, doc, city, typ)
	})

	var out []entities.Observation
	for _, list := range results {
		out = append(out, list...)
	}
	return out, errs
}

func (e *Extractor) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.ExtractTimeout)
	defer cancel()
	return e.model.Generate(ctx, prompt)
}

// text returns the document text from the document itself, the cache, or
// the fetcher, in that order.
func (e *Extractor) text(ctx context.Context, doc Document) (string, error) {
	if doc.Text != "" {
		return doc.Text, nil
	}

	if e.cache != nil {
		text, ok, err := e.cache.Check(doc.URL, doc.Coverage)
		if err != nil {
			logging.FromContext(ctx).Warn().Err(err).Msg("Cache lookup failed")
		} else if ok {
			return text, nil
		}
	}

	if e.fetcher == nil {
		return "", errors.NewSourceFetchError(doc.URL, errors.New("no fetcher configured"))
	}
	text, kind, err := e.fetcher.Fetch(ctx, doc)
	if err != nil {
		return "", err
	}

	if e.cache != nil {
		if _, err := e.cache.Add(doc.URL, text, doc.Coverage, kind); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Msg("Cache write failed")
		}
	}
	return text, nil
}

// decode converts validated output and attaches the document's provenance.
func (e *Extractor) decode(doc Document, city string, typ entities.Type, value any) ([]entities.Observation, error) {
	list, err := schema.DecodeObservations(value)
	if err != nil {
		return nil, err
	}

	now := e.now()
	for i := range list {
		obs := &list[i]
		obs.City = city
		obs.Type = typ
		obs.ObservedAt = now

		status := obs.Status
		if status == "" {
			status = doc.Status
		}
		p := entities.Provenance{URL: doc.URL, Date: doc.Date, Status: status, Title: doc.Title}
		if doc.Source == SourceReport {
			obs.ReportURLs = append(obs.ReportURLs, p)
		} else {
			obs.MinutesURLs = append(obs.MinutesURLs, p)
		}
	}
	return list, nil
}

// Prompt builds the extraction prompt for one document.
func Prompt(city string, typ entities.Type, text string) string {
	shape, _ := json.MarshalIndent(schema.ObservationSchema(), "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "You are reading a civic document from %s.\n", city)
	fmt.Fprintf(&b, "List every %s application it mentions as a JSON array of objects matching this schema:\n", typ)
	b.Write(shape)
	b.WriteString("\nUse null for anything the document does not state. Dates are YYYY-MM-DD.\n\nDocument:\n")
	b.WriteString(text)
	return b.String()
}

// truncate shortens s to at most MaxLoggedFragment bytes without splitting a rune.
func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= constants.MaxLoggedFragment {
		return s
	}
	cut := constants.MaxLoggedFragment
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
