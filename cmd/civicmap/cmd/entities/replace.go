package entities

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/agentstation/civicmap/internal/appcontext"
	"github.com/agentstation/civicmap/internal/cmd/alerts"
	"github.com/agentstation/civicmap/internal/cmd/cmdutil"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/logging"
)

// NewReplaceCommand creates the replace command.
func NewReplaceCommand(app appcontext.Interface) *cobra.Command {
	var (
		scope *cmdutil.ScopeFlags
		file  string
		yes   bool
	)

	cmd := &cobra.Command{
		Use:     "replace",
		GroupID: "management",
		Short:   "Replace every entity of a city and type without merging",
		Long: `Replace discards all stored entities of one city and type and stores the
entities read from --file in their place. No identity resolution or merge
happens. Entities of other cities are kept.

This destroys data and requires --yes.`,
		Example: `  civicmap replace --city Vancouver --file vancouver.json --yes`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.NewValidationError("yes", false, "replace discards stored entities, pass --yes to confirm")
			}
			typ, err := scope.ApplicationType()
			if err != nil {
				return err
			}

			data, err := cmdutil.ReadInput(cmd, file)
			if err != nil {
				return err
			}
			var list []entities.Entity
			if err := json.Unmarshal(data, &list); err != nil {
				return errors.WrapParse("json", file, err)
			}

			cm, err := app.Civicmap()
			if err != nil {
				return err
			}
			ctx := logging.WithOperation(cmd.Context(), "replace")
			if err := cm.ReplaceAll(ctx, typ, scope.City, list); err != nil {
				return err
			}

			return cmdutil.Alerts(cmd, app.NoColor()).Write(
				alerts.New(alerts.LevelSuccess, "Replaced %s %s entities with %d records", scope.City, typ, len(list)))
		},
	}
	scope = cmdutil.AddScopeFlags(cmd, true)
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file of entities (- for stdin)")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the destructive replace")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
