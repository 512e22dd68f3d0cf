package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/agentstation/civicmap/cmd/civicmap/cmd/appid"
	cachecmd "github.com/agentstation/civicmap/cmd/civicmap/cmd/cache"
	"github.com/agentstation/civicmap/cmd/civicmap/cmd/entities"
	"github.com/agentstation/civicmap/cmd/civicmap/cmd/reconcile"
	"github.com/agentstation/civicmap/pkg/logging"
)

// Execute runs the CLI with args.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.createRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "civicmap",
		Short:   "Civic development-application record reconciliation",
		Version: a.version,
		Long: `Civicmap reconciles noisy observations of rezonings and development
permits, extracted from council minutes and staff reports, into a
deduplicated store that follows each application through its lifecycle.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	root.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "management", Title: "Management Commands:"},
	)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.ConfigFile, "config", "", "config file (default is $HOME/.civicmap.yaml)")
	pf.BoolVarP(&a.flags.Verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	pf.BoolVarP(&a.flags.Quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	pf.BoolVar(&a.flags.NoColor, "no-color", false, "disable colored output")
	pf.StringVarP(&a.flags.Format, "format", "o", "", "output format: table, wide, json, yaml")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	pf.StringVar(&a.flags.DataDir, "data-dir", "", "directory holding the entity store and content cache")

	root.SetVersionTemplate("civicmap {{.Version}}\n")

	a.registerCommands(root)
	return root
}

// setupCommand reloads configuration when --config is given, applies the
// flag overrides and rebuilds the logger.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if a.flags.ConfigFile != "" {
		config, err := LoadConfig(a.flags.ConfigFile)
		if err != nil {
			return err
		}
		a.config = config
	}
	a.config.UpdateFromFlags(a.flags)

	logger := NewLogger(a.config)
	a.logger = &logger
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))
	return nil
}

func (a *App) registerCommands(root *cobra.Command) {
	root.AddCommand(reconcile.NewCommand(a))
	root.AddCommand(entities.NewListCommand(a))
	root.AddCommand(entities.NewShowCommand(a))

	root.AddCommand(entities.NewVerifyCommand(a))
	root.AddCommand(entities.NewReplaceCommand(a))
	root.AddCommand(appid.NewCommand(a))
	root.AddCommand(cachecmd.NewCommand(a))

	root.AddCommand(a.newVersionCommand())
	root.AddCommand(newManCommand())
}

// newManCommand generates the man page. It is hidden from help.
func newManCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "man",
		Short:  "Generate man page",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			header := &doc.GenManHeader{
				Title:   "CIVICMAP",
				Section: "1",
				Source:  "civicmap " + cmd.Root().Version,
				Manual:  "civicmap Manual",
			}
			return doc.GenMan(cmd.Root(), header, cmd.OutOrStdout())
		},
	}
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "civicmap %s\n  commit: %s\n  built:  %s by %s\n",
				a.version, a.commit, a.date, a.builtBy)
			return err
		},
	}
}

// ExitOnError prints err to stderr and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
