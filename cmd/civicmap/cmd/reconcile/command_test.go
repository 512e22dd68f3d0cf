package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/civicmap"
	"github.com/agentstation/civicmap/internal/appcontext"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/extract"
	"github.com/agentstation/civicmap/pkg/logging"
)

const observationsJSON = `[
  {"applicationId": "RZ 21-000017", "address": "8 Garden City Rd", "status": "applied",
   "minutesUrls": [{"url": "https://richmond.ca/m/2021-01-11", "date": "2021-01-11", "status": "applied"}]},
  {"applicationId": "RZ 21-000017", "address": "8 Garden City Road", "status": "public hearing",
   "minutesUrls": [{"url": "https://richmond.ca/m/2021-04-19", "date": "2021-04-19", "status": "public hearing"}]},
  {"applicationId": "RZ 21-000031",
   "minutesUrls": [{"url": "https://richmond.ca/m/2021-04-19", "date": "2021-04-19"}]}
]`

type view struct {
	City  string `json:"city"`
	Stats struct {
		Observations   int `json:"observations"`
		Created        int `json:"created"`
		Merged         int `json:"merged"`
		Filtered       int `json:"filtered"`
		MissingAddress int `json:"missingAddress"`
	} `json:"stats"`
}

// newMock returns a Mock whose instances share one data directory.
func newMock(t *testing.T, format string) (*appcontext.Mock, string) {
	t.Helper()
	logging.DisableLoggingForTest(t)

	dir := t.TempDir()
	return &appcontext.Mock{
		CivicmapWithOptionsFunc: func(opts ...civicmap.Option) (civicmap.Civicmap, error) {
			return civicmap.New(append([]civicmap.Option{civicmap.WithDataDir(dir)}, opts...)...)
		},
		Format:       format,
		DisableColor: true,
	}, dir
}

func execute(t *testing.T, app appcontext.Interface, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewCommand(app)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func stored(t *testing.T, dir string, typ entities.Type, city string) []entities.Entity {
	t.Helper()
	cm, err := civicmap.New(civicmap.WithDataDir(dir))
	require.NoError(t, err)
	defer func() { _ = cm.Close() }()
	list, err := cm.Entities(typ, city)
	require.NoError(t, err)
	return list
}

func TestCommandObservations(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantCreated int
		wantMerged  int
		wantSkipped int
		wantStored  int
	}{
		{
			name:        "creates and merges",
			args:        []string{"--city", "Richmond", "--observations", "-"},
			wantCreated: 1,
			wantMerged:  1,
			wantSkipped: 1,
			wantStored:  1,
		},
		{
			name:        "date range",
			args:        []string{"--city", "Richmond", "--observations", "-", "--start", "2021-04-01", "--end", "2021-05-01"},
			wantCreated: 1,
			wantSkipped: 2,
			wantStored:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, dir := newMock(t, "json")

			out, _, err := execute(t, app, observationsJSON, tt.args...)
			require.NoError(t, err)

			var v view
			require.NoError(t, json.Unmarshal([]byte(out), &v))
			assert.Equal(t, "Richmond", v.City)
			assert.Equal(t, 3, v.Stats.Observations)
			assert.Equal(t, tt.wantCreated, v.Stats.Created)
			assert.Equal(t, tt.wantMerged, v.Stats.Merged)
			assert.Equal(t, tt.wantSkipped, v.Stats.Filtered+v.Stats.MissingAddress)

			assert.Len(t, stored(t, dir, entities.TypeRezoning, "Richmond"), tt.wantStored)
		})
	}
}

func TestCommandTableAlert(t *testing.T) {
	app, _ := newMock(t, "table")

	out, stderr, err := execute(t, app, observationsJSON, "--city", "Richmond", "--observations", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "merged")
	assert.True(t, strings.HasPrefix(stderr, "! "), "warning alert for the skipped observation, got %q", stderr)
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		check func(error) bool
	}{
		{name: "missing city", stdin: "[]", args: []string{"--observations", "-"}, check: errors.IsValidationError},
		{name: "unknown type", stdin: "[]", args: []string{"--city", "Richmond", "--type", "subdivision", "--observations", "-"}, check: errors.IsValidationError},
		{name: "malformed observations", stdin: "{", args: []string{"--city", "Richmond", "--observations", "-"}, check: func(err error) bool { return err != nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, dir := newMock(t, "json")

			_, _, err := execute(t, app, tt.stdin, tt.args...)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Empty(t, stored(t, dir, entities.TypeRezoning, "Richmond"))
		})
	}
}

func TestCommandDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "minutes.txt"), []byte("RZ 21-000017 at 8 Garden City Rd"), 0o600))
	manifest := `city: Richmond
documents:
  - url: https://richmond.ca/m/2021-04-19
    date: "2021-04-19"
    status: public hearing
    textFile: minutes.txt
`
	path := filepath.Join(dir, "docs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o600))

	t.Run("extracts with the model", func(t *testing.T) {
		app, dataDir := newMock(t, "json")
		app.ModelFunc = func(context.Context) (extract.Model, error) {
			return extract.ModelFunc(func(context.Context, string) (string, error) {
				return `[{"applicationId":"RZ 21-000017","address":"8 Garden City Rd","status":"public hearing"}]`, nil
			}), nil
		}

		_, _, err := execute(t, app, "", "--documents", path)
		require.NoError(t, err)

		list := stored(t, dataDir, entities.TypeRezoning, "Richmond")
		require.Len(t, list, 1)
		require.Len(t, list[0].MinutesURLs, 1)
		assert.Equal(t, "2021-04-19", list[0].MinutesURLs[0].Date)
	})

	t.Run("model unavailable", func(t *testing.T) {
		logging.DisableLoggingForTest(t)
		app := &appcontext.Mock{
			CivicmapWithOptionsFunc: func(...civicmap.Option) (civicmap.Civicmap, error) {
				t.Fatal("store opened without a model")
				return nil, nil
			},
		}

		_, _, err := execute(t, app, "", "--documents", path)
		require.Error(t, err)
		var cfgErr *errors.ConfigError
		assert.True(t, errors.As(err, &cfgErr))
	})
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "report.txt")
	manifest := `city: Richmond
type: dp
documents:
  - url: https://richmond.ca/m/1
    textFile: minutes.txt
  - url: https://richmond.ca/r/1
    source: report
    textFile: ` + abs + `
`
	path := filepath.Join(dir, "docs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o600))

	m, err := loadManifest(NewCommand(&appcontext.Mock{}), path)
	require.NoError(t, err)
	assert.Equal(t, "Richmond", m.City)
	assert.Equal(t, "dp", m.Type)
	require.Len(t, m.Documents, 2)
	assert.Equal(t, filepath.Join(dir, "minutes.txt"), m.Documents[0].TextFile)
	assert.Equal(t, extract.SourceMinutes, m.Documents[0].Source)
	assert.Equal(t, abs, m.Documents[1].TextFile)
	assert.Equal(t, extract.SourceReport, m.Documents[1].Source)

	_, err = loadManifest(NewCommand(&appcontext.Mock{}), filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestFillScope(t *testing.T) {
	list := []entities.Observation{
		{Address: "1 No. 3 Rd"},
		{Address: "4 Kingsway", City: "Burnaby", Type: entities.TypeDevelopmentPermit},
	}
	fillScope(list, "Richmond", entities.TypeRezoning)

	assert.Equal(t, "Richmond", list[0].City)
	assert.Equal(t, entities.TypeRezoning, list[0].Type)
	assert.Equal(t, "Burnaby", list[1].City)
	assert.Equal(t, entities.TypeDevelopmentPermit, list[1].Type)
}
