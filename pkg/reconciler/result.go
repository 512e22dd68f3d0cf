package reconciler

import (
	"fmt"
	"time"

	"github.com/agentstation/civicmap/internal/metrics"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/identity"
	"github.com/agentstation/civicmap/pkg/merge"
)

// Outcome is what happened to one observation.
type Outcome string

// Observation outcomes.
const (
	OutcomeCreated        Outcome = metrics.OutcomeCreated
	OutcomeMerged         Outcome = metrics.OutcomeMerged
	OutcomeFiltered       Outcome = metrics.OutcomeFiltered
	OutcomeMissingAddress Outcome = metrics.OutcomeMissingAddress
	OutcomeInvalid        Outcome = metrics.OutcomeInvalid
	OutcomeFailed         Outcome = metrics.OutcomeFailed
)

// Item is the outcome of one observation, in batch order.
type Item struct {
	Index    int             `json:"index" yaml:"index"`
	Outcome  Outcome         `json:"outcome" yaml:"outcome"`
	EntityID string          `json:"entityId,omitempty" yaml:"entityId,omitempty"`
	Tier     string          `json:"tier,omitempty" yaml:"tier,omitempty"`
	Score    float64         `json:"score,omitempty" yaml:"score,omitempty"`
	Decision *merge.Decision `json:"decision,omitempty" yaml:"decision,omitempty"`
	Error    string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result represents the outcome of a reconciliation batch.
type Result struct {
	City string
	Type entities.Type

	Items []Item

	// Metadata
	Metadata ResultMetadata

	// Issues
	Errors   []error
	Warnings []string
}

// ResultMetadata contains metadata about the reconciliation batch.
type ResultMetadata struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Stats     ResultStatistics
}

// ResultStatistics counts observations by outcome.
type ResultStatistics struct {
	Observations   int `json:"observations" yaml:"observations"`
	Created        int `json:"created" yaml:"created"`
	Merged         int `json:"merged" yaml:"merged"`
	Filtered       int `json:"filtered" yaml:"filtered"`
	MissingAddress int `json:"missingAddress" yaml:"missingAddress"`
	Invalid        int `json:"invalid" yaml:"invalid"`
	Failed         int `json:"failed" yaml:"failed"`
}

// Skipped returns the number of observations that were not persisted.
func (s ResultStatistics) Skipped() int {
	return s.Filtered + s.MissingAddress + s.Invalid + s.Failed
}

// NewResult creates a new result with defaults.
func NewResult(city string, typ entities.Type) *Result {
	return &Result{
		City:     city,
		Type:     typ,
		Items:    []Item{},
		Errors:   []error{},
		Warnings: []string{},
		Metadata: ResultMetadata{
			StartTime: time.Now(),
		},
	}
}

// add records one observation outcome.
func (r *Result) add(item Item) {
	r.Items = append(r.Items, item)
	r.Metadata.Stats.Observations++
	switch item.Outcome {
	case OutcomeCreated:
		r.Metadata.Stats.Created++
	case OutcomeMerged:
		r.Metadata.Stats.Merged++
	case OutcomeFiltered:
		r.Metadata.Stats.Filtered++
	case OutcomeMissingAddress:
		r.Metadata.Stats.MissingAddress++
	case OutcomeInvalid:
		r.Metadata.Stats.Invalid++
	case OutcomeFailed:
		r.Metadata.Stats.Failed++
	}
}

func matchItem(index int, outcome Outcome, id string, m identity.Match) Item {
	item := Item{Index: index, Outcome: outcome, EntityID: id}
	if m.Found() {
		item.Tier = m.Tier.String()
		item.Score = m.Score
	}
	return item
}

// IsSuccess returns true if no store operation failed.
func (r *Result) IsSuccess() bool {
	return len(r.Errors) == 0
}

// HasChanges returns true if any entity was created or merged.
func (r *Result) HasChanges() bool {
	return r.Metadata.Stats.Created+r.Metadata.Stats.Merged > 0
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	s := r.Metadata.Stats
	if !r.IsSuccess() {
		return fmt.Sprintf("Reconciliation finished with %d errors: %d created, %d merged, %d skipped",
			len(r.Errors), s.Created, s.Merged, s.Skipped())
	}
	if !r.HasChanges() {
		return fmt.Sprintf("Reconciliation completed. No changes (%d skipped).", s.Skipped())
	}
	return fmt.Sprintf("Reconciliation completed. %d created, %d merged, %d skipped.", s.Created, s.Merged, s.Skipped())
}

// Finalize calculates duration and marks completion.
func (r *Result) Finalize() {
	r.Metadata.EndTime = time.Now()
	r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)
}
