package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/civicmap/internal/transport"
	"github.com/agentstation/civicmap/pkg/cache"
	"github.com/agentstation/civicmap/pkg/errors"
)

func TestSourceFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/minutes.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<p>REZ-2024-01 at 123 Main St</p>"))
		case "/minutes.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.7"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	textFile := filepath.Join(t.TempDir(), "minutes.txt")
	require.NoError(t, os.WriteFile(textFile, []byte("local text"), 0o600))

	f := NewSourceFetcher(transport.WithResponseTTL(0))

	tests := []struct {
		name     string
		doc      Document
		wantText string
		wantErr  bool
	}{
		{name: "text file wins", doc: Document{URL: srv.URL + "/minutes.html", TextFile: textFile}, wantText: "local text"},
		{name: "downloads html", doc: Document{URL: srv.URL + "/minutes.html"}, wantText: "<p>REZ-2024-01 at 123 Main St</p>"},
		{name: "rejects pdf", doc: Document{URL: srv.URL + "/minutes.pdf"}, wantErr: true},
		{name: "missing document", doc: Document{URL: srv.URL + "/gone"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, kind, err := f.Fetch(context.Background(), tt.doc)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsSourceFetch(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, cache.KindText, kind)
		})
	}
}
