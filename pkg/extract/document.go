package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/agentstation/civicmap/internal/transport"
	"github.com/agentstation/civicmap/pkg/cache"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
)

// Source is the kind of civic document a text came from.
type Source string

// Document sources.
const (
	SourceMinutes Source = "minutes"
	SourceReport  Source = "report"
)

// Document is one source document to extract observations from.
type Document struct {
	URL      string          `json:"url" yaml:"url"`
	Title    string          `json:"title,omitempty" yaml:"title,omitempty"`
	Date     string          `json:"date" yaml:"date"`                         // Meeting or report date, YYYY-MM-DD
	Status   entities.Status `json:"status,omitempty" yaml:"status,omitempty"` // Stage the document records, if known
	Source   Source          `json:"source" yaml:"source"`
	Coverage cache.Coverage  `json:"coverage,omitempty" yaml:"coverage,omitempty"`
	Kind     cache.Kind      `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Text is the document text when the caller already has it.
	Text string `json:"-" yaml:"-"`
	// TextFile is read by FileFetcher. Documents without one are downloaded.
	TextFile string `json:"textFile,omitempty" yaml:"textFile,omitempty"`
}

// Fetcher produces document text for a requested coverage.
type Fetcher interface {
	Fetch(ctx context.Context, doc Document) (string, cache.Kind, error)
}

// FileFetcher reads already extracted text from Document.TextFile.
type FileFetcher struct{}

// Fetch implements Fetcher.
func (FileFetcher) Fetch(_ context.Context, doc Document) (string, cache.Kind, error) {
	if doc.TextFile == "" {
		return "", "", errors.NewSourceFetchError(doc.URL, errors.New("no text file for document"))
	}
	data, err := os.ReadFile(doc.TextFile)
	if err != nil {
		return "", "", errors.NewSourceFetchError(doc.URL, err)
	}
	kind := doc.Kind
	if kind == "" {
		kind = cache.KindText
	}
	return string(data), kind, nil
}

// HTTPFetcher downloads text and HTML documents from Document.URL.
type HTTPFetcher struct {
	Client *transport.Client
}

// Fetch implements Fetcher.
func (f HTTPFetcher) Fetch(ctx context.Context, doc Document) (string, cache.Kind, error) {
	client := f.Client
	if client == nil {
		client = transport.New()
	}
	resp, err := client.Get(ctx, doc.URL)
	if err != nil {
		return "", "", err
	}
	if !textual(resp.MediaType) {
		return "", "", errors.NewSourceFetchError(doc.URL, fmt.Errorf("unsupported media type %s", resp.MediaType))
	}
	return string(resp.Body), cache.KindText, nil
}

func textual(mediaType string) bool {
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/xhtml+xml", mediaType == "application/json":
		return true
	}
	return false
}

// SourceFetcher reads Document.TextFile when set and downloads the document otherwise.
type SourceFetcher struct {
	File FileFetcher
	HTTP HTTPFetcher
}

// NewSourceFetcher returns a SourceFetcher sharing one transport client.
func NewSourceFetcher(opts ...transport.Option) SourceFetcher {
	return SourceFetcher{HTTP: HTTPFetcher{Client: transport.New(opts...)}}
}

// Fetch implements Fetcher.
func (f SourceFetcher) Fetch(ctx context.Context, doc Document) (string, cache.Kind, error) {
	if doc.TextFile != "" {
		return f.File.Fetch(ctx, doc)
	}
	return f.HTTP.Fetch(ctx, doc)
}
