package entities

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/civicmap/internal/appcontext"
	"github.com/agentstation/civicmap/internal/cmd/cmdutil"
	"github.com/agentstation/civicmap/internal/cmd/output"
)

// NewShowCommand creates the show command.
func NewShowCommand(app appcontext.Interface) *cobra.Command {
	var scope *cmdutil.ScopeFlags

	cmd := &cobra.Command{
		Use:     "show <id>",
		GroupID: "core",
		Short:   "Show one entity with its provenance",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := scope.ApplicationType()
			if err != nil {
				return err
			}
			cm, err := app.Civicmap()
			if err != nil {
				return err
			}
			e, err := cm.Entity(typ, args[0])
			if err != nil {
				return err
			}

			format, formatter, err := cmdutil.Formatter(app.OutputFormat())
			if err != nil {
				return err
			}
			var data any = e
			if format.Tabular() {
				data = output.EntityToData(e)
			}
			return formatter.Format(cmd.OutOrStdout(), data)
		},
	}
	scope = cmdutil.AddScopeFlags(cmd, false)
	return cmd
}
