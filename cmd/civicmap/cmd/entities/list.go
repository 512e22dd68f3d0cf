// Package entities provides the commands that read and maintain stored
// entities: list, show, verify and replace.
package entities

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/civicmap/internal/appcontext"
	"github.com/agentstation/civicmap/internal/cmd/cmdutil"
	"github.com/agentstation/civicmap/internal/cmd/output"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
)

// NewListCommand creates the list command.
func NewListCommand(app appcontext.Interface) *cobra.Command {
	var (
		scope  *cmdutil.ScopeFlags
		status string
		search string
		limit  int
	)

	cmd := &cobra.Command{
		Use:     "list",
		GroupID: "core",
		Short:   "List stored entities, newest first",
		Example: `  civicmap list --city Vancouver
  civicmap list --type dp --status approved -o wide
  civicmap list --search "main st" -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			typ, err := scope.ApplicationType()
			if err != nil {
				return err
			}
			if status != "" && !entities.Status(status).Valid() {
				return errors.NewValidationError("status", status, "unknown status")
			}

			cm, err := app.Civicmap()
			if err != nil {
				return err
			}
			list, err := cm.Entities(typ, scope.City)
			if err != nil {
				return err
			}

			list = filter(list, entities.Status(status), search)
			if limit > 0 && len(list) > limit {
				list = list[:limit]
			}

			format, formatter, err := cmdutil.Formatter(app.OutputFormat())
			if err != nil {
				return err
			}
			var data any = list
			if format.Tabular() {
				data = output.EntitiesToData(list, format.Wide())
			}
			return formatter.Format(cmd.OutOrStdout(), data)
		},
	}
	scope = cmdutil.AddScopeFlags(cmd, false)
	cmd.Flags().StringVar(&status, "status", "", "only entities with this status")
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive match on address, application id or applicant")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "limit number of results")
	return cmd
}

func filter(list []entities.Entity, status entities.Status, search string) []entities.Entity {
	search = strings.ToLower(search)
	out := make([]entities.Entity, 0, len(list))
	for _, e := range list {
		if status != "" && e.Status != status {
			continue
		}
		if search != "" && !matches(e, search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matches(e entities.Entity, search string) bool {
	fields := []string{e.Address}
	if e.ApplicationID != nil {
		fields = append(fields, *e.ApplicationID)
	}
	if e.Applicant != nil {
		fields = append(fields, *e.Applicant)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}
