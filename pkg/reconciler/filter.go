package reconciler

import (
	"time"

	"github.com/agentstation/civicmap/pkg/constants"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
)

// filter keeps observations whose provenance falls in [start, end).
type filter struct {
	start string // YYYY-MM-DD, empty for no lower bound
	end   string // YYYY-MM-DD, exclusive, empty for no upper bound
}

// newFilter validates the bounds of a date range.
func newFilter(start, end string) (*filter, error) {
	for field, v := range map[string]string{"start": start, "end": end} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(constants.DateLayout, v); err != nil {
			return nil, errors.NewValidationError(field, v, "must be a YYYY-MM-DD date")
		}
	}
	if start != "" && end != "" && end <= start {
		return nil, errors.NewValidationError("end", end, "must be after start")
	}
	return &filter{start: start, end: end}, nil
}

// isEnabled returns true if a bound is set.
func (f *filter) isEnabled() bool {
	return f.start != "" || f.end != ""
}

// inRange reports whether date lies in [start, end).
func (f *filter) inRange(date string) bool {
	if f.start != "" && date < f.start {
		return false
	}
	if f.end != "" && date >= f.end {
		return false
	}
	return true
}

// keep reports whether any provenance date of obs is in range. Observations
// without dated provenance are only kept when filtering is disabled.
func (f *filter) keep(obs entities.Observation) bool {
	if !f.isEnabled() {
		return true
	}
	for _, d := range obs.ProvenanceDates() {
		if f.inRange(d) {
			return true
		}
	}
	return false
}
