// Package appid provides the appid command.
package appid

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/civicmap/internal/appcontext"
	"github.com/agentstation/civicmap/internal/cmd/cmdutil"
	"github.com/agentstation/civicmap/pkg/appid"
)

// NewCommand creates the appid command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "appid <template> [file]",
		GroupID: "management",
		Short:   "Extract application ids from text using a city's id template",
		Long: `Appid scans text for identifiers shaped like the template. X stands for
a digit; spaces, '#' and '.' in the template are formatting only and may
be missing or split across lines in the text. Ids are printed in the
template's format, once each, in order of first appearance.`,
		Example: `  civicmap appid "RZ XX-XXXXXX" minutes.txt
  pdftotext report.pdf - | civicmap appid "DP XXXX-XXXX"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 2 {
				path = args[1]
			}
			content, err := cmdutil.ReadInput(cmd, path)
			if err != nil {
				return err
			}

			tmpl, err := appid.Compile(args[0])
			if err != nil {
				return err
			}
			ids := tmpl.Extract(string(content))

			format, formatter, err := cmdutil.Formatter(app.OutputFormat())
			if err != nil {
				return err
			}
			if !format.Tabular() {
				if ids == nil {
					ids = []string{}
				}
				return formatter.Format(cmd.OutOrStdout(), ids)
			}
			for _, id := range ids {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
