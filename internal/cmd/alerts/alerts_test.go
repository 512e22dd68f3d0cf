package alerts

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/reconciler"
)

func TestWriter(t *testing.T) {
	tests := []struct {
		name  string
		alert *Alert
		opts  []WriterOption
		want  string
	}{
		{
			name:  "success",
			alert: New(LevelSuccess, "Stored %s", "https://example.com/a"),
			want:  "✓ Stored https://example.com/a\n",
		},
		{
			name:  "error with details",
			alert: New(LevelError, "Reconcile failed").WithError(errors.New("boom")).WithDetails("first", "second"),
			want:  "✗ Reconcile failed: boom\n   first\n   second\n",
		},
		{
			name:  "details hidden",
			alert: New(LevelWarning, "Skipped").WithDetails("no address"),
			opts:  []WriterOption{WithoutDetails()},
			want:  "! Skipped\n",
		},
		{
			name:  "colored",
			alert: New(LevelInfo, "Kept"),
			opts:  []WriterOption{WithColor(true)},
			want:  "\033[36mi Kept\033[0m\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewWriter(&buf, tt.opts...).Write(tt.alert))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestForResult(t *testing.T) {
	r := &reconciler.Result{Warnings: []string{"observation 2 has no address"}}
	a := ForResult(r)
	assert.Equal(t, LevelWarning, a.Level)
	assert.Equal(t, []string{"observation 2 has no address"}, a.Details)

	r.Errors = []error{errors.New("write failed")}
	a = ForResult(r)
	assert.Equal(t, LevelError, a.Level)
	assert.Equal(t, []string{"write failed", "observation 2 has no address"}, a.Details)

	assert.Equal(t, LevelSuccess, ForResult(&reconciler.Result{}).Level)
}
