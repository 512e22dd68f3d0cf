// Package cmdutil provides flag helpers shared by civicmap commands.
package cmdutil

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/civicmap/internal/cmd/alerts"
	"github.com/agentstation/civicmap/internal/cmd/output"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
)

// ScopeFlags select a partition and optionally one city.
type ScopeFlags struct {
	Type string
	City string
}

// AddScopeFlags adds --type and --city to cmd. When cityRequired is set,
// --city must be given.
func AddScopeFlags(cmd *cobra.Command, cityRequired bool) *ScopeFlags {
	f := &ScopeFlags{}
	cmd.Flags().StringVarP(&f.Type, "type", "t", string(entities.TypeRezoning),
		"Application type: rezoning, development permit (dp)")
	cmd.Flags().StringVarP(&f.City, "city", "c", "", "City name")
	if cityRequired {
		_ = cmd.MarkFlagRequired("city")
	}
	return f
}

// ApplicationType parses the --type flag.
func (f *ScopeFlags) ApplicationType() (entities.Type, error) {
	return ParseType(f.Type)
}

// ParseType parses an application type, accepting "dp" and hyphenated
// spellings.
func ParseType(s string) (entities.Type, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", " ")
	norm = strings.ReplaceAll(norm, "_", " ")
	if norm == "dp" {
		norm = string(entities.TypeDevelopmentPermit)
	}
	typ := entities.Type(norm)
	if !typ.Valid() {
		return "", errors.NewValidationError("type", s, "must be rezoning or development permit")
	}
	return typ, nil
}

// Formatter resolves the output format for cmd.
func Formatter(format string) (output.Format, output.Formatter, error) {
	f, err := output.ParseFormat(format)
	if err != nil {
		return "", nil, err
	}
	f = output.DetectFormat(string(f))
	return f, output.NewFormatter(f), nil
}

// ReadInput reads path, or stdin when path is "-" or empty.
func ReadInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return data, nil
}

// Alerts returns a status writer on the command's stderr.
func Alerts(cmd *cobra.Command, noColor bool) *alerts.Writer {
	if noColor {
		return alerts.NewWriter(cmd.ErrOrStderr(), alerts.WithColor(false))
	}
	return alerts.NewWriter(cmd.ErrOrStderr())
}
