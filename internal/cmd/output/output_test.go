package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/reconciler"
)

func ptr[T any](v T) *T { return &v }

func sampleEntity() entities.Entity {
	return entities.Entity{
		ID:            "e1",
		City:          "Vancouver",
		Type:          entities.TypeRezoning,
		ApplicationID: ptr("REZ-2024-01"),
		Address:       "123 Main St",
		Status:        entities.StatusApproved,
		Dates:         entities.Dates{ApprovalDate: ptr("2024-03-01")},
		Stats:         entities.Stats{Storeys: ptr(12.0)},
		MinutesURLs: []entities.Provenance{
			{URL: "https://example.gov/m1", Date: "2024-03-01", Status: entities.StatusApproved},
		},
		CreateDate: utc.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		UpdateDate: utc.New(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)),
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", "", false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"wide", FormatWide, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).Format(&buf, []entities.Entity{sampleEntity()}))

	var got []entities.Entity
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatYAML).Format(&buf, sampleEntity()))
	assert.Contains(t, buf.String(), "address: 123 Main St")
	assert.Contains(t, buf.String(), "applicationId: REZ-2024-01")
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := EntitiesToData([]entities.Entity{sampleEntity()}, false)
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, data))

	out := buf.String()
	for _, want := range []string{"REZ-2024-01", "123 Main St", "approved", "2024-03-01"} {
		assert.Contains(t, out, want)
	}
}

func TestTableFormatterReflects(t *testing.T) {
	type row struct {
		ApplicationID string `json:"applicationId"`
		Count         *int   `json:"count"`
	}

	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(&buf, []row{{ApplicationID: "DP-1"}}))
	assert.Contains(t, buf.String(), "DP-1")
	assert.Contains(t, buf.String(), "-")

	buf.Reset()
	require.NoError(t, (&TableFormatter{}).Format(&buf, map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a":1}`, buf.String())
}

func TestEntitiesToDataWide(t *testing.T) {
	d := EntitiesToData([]entities.Entity{sampleEntity()}, true)
	require.Len(t, d.Rows, 1)
	assert.Len(t, d.Rows[0], len(d.Headers))
	assert.Equal(t, "1", d.Rows[0][8])
	assert.Equal(t, "0", d.Rows[0][9])
}

func TestEntityToData(t *testing.T) {
	d := EntityToData(sampleEntity())

	props := map[string]string{}
	for _, r := range d.Rows {
		props[r[0]] = r[1]
	}
	assert.Equal(t, "REZ-2024-01", props["Application ID"])
	assert.Equal(t, "2024-03-01", props["Approved Date"])
	assert.Equal(t, "12", props["Storeys"])
	assert.Equal(t, "-", props["Applicant"])
	assert.Equal(t, "2024-03-01  approved  https://example.gov/m1", props["Minutes"])
	assert.Equal(t, "2024-01-01", props["Created"])
}

func TestIssuesToData(t *testing.T) {
	d := IssuesToData([]entities.Issue{{Kind: entities.IssueMissingID, Message: "no id"}})
	want := [][]string{{"-", "missing_id", "no id"}}
	if diff := cmp.Diff(want, d.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestResultToData(t *testing.T) {
	r := reconciler.NewResult("Vancouver", entities.TypeRezoning)
	r.Items = []reconciler.Item{
		{Index: 0, Outcome: reconciler.OutcomeCreated, EntityID: "e1"},
		{Index: 1, Outcome: reconciler.OutcomeMerged, EntityID: "e1", Tier: "address", Score: 0.8123},
		{Index: 2, Outcome: reconciler.OutcomeMissingAddress, Error: "no address"},
	}
	r.Errors = append(r.Errors, errors.New("boom"))

	d := ResultToData(r, true)
	want := [][]string{
		{"0", "created", "e1", "-", "-", "-", "-"},
		{"1", "merged", "e1", "address", "0.812", "-", "-"},
		{"2", "missing_address", "-", "-", "-", "-", "no address"},
	}
	if diff := cmp.Diff(want, d.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	v := NewResultView(r)
	assert.Equal(t, []string{"boom"}, v.Errors)
	assert.Len(t, v.Items, 3)
}
