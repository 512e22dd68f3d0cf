// Package cache provides the cache command.
package cache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/civicmap/internal/appcontext"
	"github.com/agentstation/civicmap/internal/cmd/alerts"
	"github.com/agentstation/civicmap/internal/cmd/cmdutil"
	"github.com/agentstation/civicmap/internal/cmd/output"
	"github.com/agentstation/civicmap/pkg/cache"
	"github.com/agentstation/civicmap/pkg/errors"
)

// NewCommand creates the cache command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cache",
		GroupID: "management",
		Short:   "Inspect and fill the document content cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newCheckCommand(app), newAddCommand(app))
	return cmd
}

// coverageFlags selects a page extent.
type coverageFlags struct {
	maxPages int
	pages    string
}

func addCoverageFlags(cmd *cobra.Command) *coverageFlags {
	f := &coverageFlags{}
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "coverage of the first N pages")
	cmd.Flags().StringVar(&f.pages, "pages", "", "coverage of an explicit page list, e.g. 1,2,5")
	cmd.MarkFlagsMutuallyExclusive("max-pages", "pages")
	return f
}

func (f *coverageFlags) coverage() (cache.Coverage, error) {
	if f.pages == "" {
		if f.maxPages < 0 {
			return cache.Coverage{}, errors.NewValidationError("max-pages", f.maxPages, "cannot be negative")
		}
		return cache.FirstPages(f.maxPages), nil
	}
	var pages []int
	for _, p := range strings.Split(f.pages, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 1 {
			return cache.Coverage{}, errors.NewValidationError("pages", f.pages, "pages are positive integers")
		}
		pages = append(pages, n)
	}
	return cache.PageSet(pages...), nil
}

type checkResult struct {
	URL    string `json:"url" yaml:"url"`
	Cached bool   `json:"cached" yaml:"cached"`
	Length int    `json:"length" yaml:"length"`
	Text   string `json:"text,omitempty" yaml:"text,omitempty"`
}

func newCheckCommand(app appcontext.Interface) *cobra.Command {
	var printText bool
	var cov *coverageFlags

	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Report whether a document is cached for a coverage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cov.coverage()
			if err != nil {
				return err
			}
			cm, err := app.Civicmap()
			if err != nil {
				return err
			}
			text, ok, err := cm.Cache().Check(args[0], c)
			if err != nil {
				return err
			}

			if printText {
				if !ok {
					return errors.NewNotFoundError("cache entry", args[0])
				}
				_, err := fmt.Fprint(cmd.OutOrStdout(), text)
				return err
			}

			res := checkResult{URL: args[0], Cached: ok, Length: len(text)}
			format, formatter, err := cmdutil.Formatter(app.OutputFormat())
			if err != nil {
				return err
			}
			var data any = res
			if format.Tabular() {
				data = output.Data{
					Headers: []string{"URL", "Cached", "Length"},
					Rows:    [][]string{{res.URL, strconv.FormatBool(res.Cached), strconv.Itoa(res.Length)}},
				}
			}
			return formatter.Format(cmd.OutOrStdout(), data)
		},
	}
	cov = addCoverageFlags(cmd)
	cmd.Flags().BoolVar(&printText, "print", false, "print the cached text")
	return cmd
}

func newAddCommand(app appcontext.Interface) *cobra.Command {
	var (
		cov  *coverageFlags
		file string
		kind string
	)

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Store extracted text for a document",
		Long: `Add stores text for a document URL. An existing entry is only replaced
when the new coverage is strictly wider.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cov.coverage()
			if err != nil {
				return err
			}
			k := cache.Kind(kind)
			if k != cache.KindText && k != cache.KindImage {
				return errors.NewValidationError("kind", kind, "must be text or image")
			}
			text, err := cmdutil.ReadInput(cmd, file)
			if err != nil {
				return err
			}

			cm, err := app.Civicmap()
			if err != nil {
				return err
			}
			stored, err := cm.Cache().Add(args[0], string(text), c, k)
			if err != nil {
				return err
			}

			alert := alerts.New(alerts.LevelSuccess, "Stored %s", args[0])
			if !stored {
				alert = alerts.New(alerts.LevelInfo, "Kept existing entry for %s", args[0])
			}
			return cmdutil.Alerts(cmd, app.NoColor()).Write(alert)
		},
	}
	cov = addCoverageFlags(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "-", "text file (- for stdin)")
	cmd.Flags().StringVar(&kind, "kind", string(cache.KindText), "how the text was produced: text or image")
	return cmd
}
