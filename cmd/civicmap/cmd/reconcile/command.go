// Package reconcile provides the reconcile command.
package reconcile

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/agentstation/civicmap"
	"github.com/agentstation/civicmap/internal/appcontext"
	"github.com/agentstation/civicmap/internal/cmd/alerts"
	"github.com/agentstation/civicmap/internal/cmd/cmdutil"
	"github.com/agentstation/civicmap/internal/cmd/output"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
	"github.com/agentstation/civicmap/pkg/extract"
	"github.com/agentstation/civicmap/pkg/logging"
	"github.com/agentstation/civicmap/pkg/reconciler"
)

// Manifest lists source documents for one city and type.
type Manifest struct {
	City      string             `yaml:"city" json:"city"`
	Type      string             `yaml:"type" json:"type"`
	Documents []extract.Document `yaml:"documents" json:"documents"`
}

type options struct {
	scope        *cmdutil.ScopeFlags
	observations string
	documents    string
	start        string
	end          string
	metricsFile  string
}

// NewCommand creates the reconcile command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:     "reconcile",
		GroupID: "core",
		Short:   "Merge observations into the entity store",
		Long: `Reconcile resolves each observation against the stored entities of the
same city and type, merges it into a match or creates a new entity, and
re-sorts the store by recency.

Observations come from a JSON file (--observations) or are extracted by
the configured model from a document manifest (--documents).`,
		Example: `  civicmap reconcile --city Vancouver --observations obs.json
  civicmap reconcile --documents minutes.yaml --start 2024-01-01 --end 2024-07-01
  civicmap reconcile --city Burnaby --type dp --observations - < obs.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app, o)
		},
	}

	o.scope = cmdutil.AddScopeFlags(cmd, false)
	cmd.Flags().StringVar(&o.observations, "observations", "", "JSON file of observations (- for stdin)")
	cmd.Flags().StringVar(&o.documents, "documents", "", "YAML manifest of source documents to extract")
	cmd.Flags().StringVar(&o.start, "start", "", "keep observations with a source dated on or after this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&o.end, "end", "", "keep observations with a source dated before this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&o.metricsFile, "metrics-file", "", "write prometheus metrics to this file")
	cmd.MarkFlagsMutuallyExclusive("observations", "documents")
	cmd.MarkFlagsOneRequired("observations", "documents")

	return cmd
}

func run(cmd *cobra.Command, app appcontext.Interface, o *options) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)

	opts := []civicmap.Option{}
	if o.metricsFile != "" {
		opts = append(opts, civicmap.WithRegistry(prometheus.NewRegistry()))
	}

	batch := reconciler.Batch{Start: o.start, End: o.end}
	var docs []extract.Document

	if o.documents != "" {
		m, err := loadManifest(cmd, o.documents)
		if err != nil {
			return err
		}
		batch.City = m.City
		if m.Type != "" {
			o.scope.Type = m.Type
		}
		docs = m.Documents

		model, err := app.Model(ctx)
		if err != nil {
			return err
		}
		opts = append(opts, civicmap.WithModel(model))
	}
	if o.scope.City != "" {
		batch.City = o.scope.City
	}
	if batch.City == "" {
		return errors.NewValidationError("city", "", "--city is required")
	}

	typ, err := o.scope.ApplicationType()
	if err != nil {
		return err
	}
	batch.Type = typ

	cm, err := app.CivicmapWithOptions(opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := cm.Close(); err != nil {
			logger.Warn().Err(err).Msg("Closing civicmap")
		}
	}()

	if docs != nil {
		obs, errs := cm.Extract(ctx, docs, batch.City, typ)
		failed := 0
		for i, err := range errs {
			if err != nil {
				failed++
				logger.Warn().Err(err).Str("source_url", docs[i].URL).Msg("Document skipped")
			}
		}
		logger.Info().Int("documents", len(docs)).Int("failed", failed).Int("observations", len(obs)).Msg("Extraction finished")
		batch.Observations = obs
	} else {
		data, err := cmdutil.ReadInput(cmd, o.observations)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &batch.Observations); err != nil {
			return errors.WrapParse("json", o.observations, err)
		}
	}
	fillScope(batch.Observations, batch.City, typ)

	result, err := cm.Reconcile(ctx, batch)
	if err != nil {
		return err
	}

	if o.metricsFile != "" {
		if err := cm.WriteMetrics(o.metricsFile); err != nil {
			return err
		}
	}

	if err := render(cmd, app, result); err != nil {
		return err
	}
	if !result.IsSuccess() {
		return fmt.Errorf("%d observations could not be stored", len(result.Errors))
	}
	return nil
}

// fillScope sets the batch city and type on observations that omit them.
func fillScope(list []entities.Observation, city string, typ entities.Type) {
	for i := range list {
		if list[i].City == "" {
			list[i].City = city
		}
		if list[i].Type == "" {
			list[i].Type = typ
		}
	}
}

func loadManifest(cmd *cobra.Command, path string) (*Manifest, error) {
	data, err := cmdutil.ReadInput(cmd, path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}

	base := filepath.Dir(path)
	for i := range m.Documents {
		d := &m.Documents[i]
		if d.TextFile != "" && !filepath.IsAbs(d.TextFile) && path != "-" {
			d.TextFile = filepath.Join(base, d.TextFile)
		}
		if d.Source == "" {
			d.Source = extract.SourceMinutes
		}
	}
	return &m, nil
}

func render(cmd *cobra.Command, app appcontext.Interface, result *reconciler.Result) error {
	format, formatter, err := cmdutil.Formatter(app.OutputFormat())
	if err != nil {
		return err
	}

	var data any = output.NewResultView(result)
	if format.Tabular() {
		data = output.ResultToData(result, format.Wide())
	}
	if err := formatter.Format(cmd.OutOrStdout(), data); err != nil {
		return err
	}
	if format.Tabular() {
		return cmdutil.Alerts(cmd, app.NoColor()).Write(alerts.ForResult(result))
	}
	return nil
}
