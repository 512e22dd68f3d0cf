package entities

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/civicmap/internal/appcontext"
	"github.com/agentstation/civicmap/internal/cmd/cmdutil"
	"github.com/agentstation/civicmap/internal/cmd/output"
	"github.com/agentstation/civicmap/pkg/entities"
)

// NewVerifyCommand creates the verify command. It reports violations and
// never modifies the store.
func NewVerifyCommand(app appcontext.Interface) *cobra.Command {
	var (
		scope  *cmdutil.ScopeFlags
		strict bool
	)

	cmd := &cobra.Command{
		Use:     "verify",
		GroupID: "management",
		Short:   "Report stored entities that break record invariants",
		Long: `Verify checks every stored entity of a type for duplicate provenance,
statuses without a matching date, missing ids and duplicate application
ids within a city. Nothing is repaired.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			typ, err := scope.ApplicationType()
			if err != nil {
				return err
			}
			cm, err := app.Civicmap()
			if err != nil {
				return err
			}
			issues, err := cm.Verify(typ, scope.City)
			if err != nil {
				return err
			}

			format, formatter, err := cmdutil.Formatter(app.OutputFormat())
			if err != nil {
				return err
			}
			var data any = issues
			if issues == nil {
				data = []entities.Issue{}
			}
			if format.Tabular() {
				data = output.IssuesToData(issues)
			}
			if err := formatter.Format(cmd.OutOrStdout(), data); err != nil {
				return err
			}

			if strict && len(issues) > 0 {
				return fmt.Errorf("%d invariant violations", len(issues))
			}
			return nil
		},
	}
	scope = cmdutil.AddScopeFlags(cmd, false)
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any violation is found")
	return cmd
}
