package output

import (
	"strconv"
	"strings"

	"github.com/agentstation/civicmap/pkg/constants"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/reconciler"
)

const maxDescription = 60

// EntitiesToData lists entities one per row. Wide adds applicant, building
// type and the provenance counts.
func EntitiesToData(list []entities.Entity, wide bool) Data {
	d := Data{Headers: []string{"ID", "City", "Application ID", "Address", "Status", "Latest"}}
	if wide {
		d.Headers = append(d.Headers, "Applicant", "Building Type", "Minutes", "Reports", "Description")
	}

	for _, e := range list {
		row := []string{
			e.ID,
			e.City,
			dash(deref(e.ApplicationID)),
			e.Address,
			dash(string(e.Status)),
			dash(e.LatestDate()),
		}
		if wide {
			row = append(row,
				dash(deref(e.Applicant)),
				dash(buildingType(e.BuildingType)),
				strconv.Itoa(len(e.MinutesURLs)),
				strconv.Itoa(len(e.ReportURLs)),
				dash(truncate(e.Description, maxDescription)),
			)
		}
		d.Rows = append(d.Rows, row)
	}
	return d
}

// EntityToData renders one entity as property/value rows followed by its
// provenance.
func EntityToData(e entities.Entity) Data {
	d := Data{Headers: []string{"Property", "Value"}}
	add := func(k, v string) {
		d.Rows = append(d.Rows, []string{k, dash(v)})
	}

	add("ID", e.ID)
	add("City", e.City)
	add("Metro City", e.MetroCity)
	add("Type", string(e.Type))
	add("Application ID", deref(e.ApplicationID))
	add("Address", e.Address)
	add("Applicant", deref(e.Applicant))
	add("Behalf", deref(e.Behalf))
	add("Building Type", buildingType(e.BuildingType))
	add("Status", string(e.Status))
	add("Description", e.Description)

	for _, s := range entities.Statuses {
		if date := e.Dates.For(s); date != nil && *date != nil {
			add(title.String(string(s))+" Date", **date)
		}
	}

	stats := []struct {
		name string
		v    *float64
	}{
		{"Buildings", e.Stats.Buildings},
		{"Stratas", e.Stats.Stratas},
		{"Rentals", e.Stats.Rentals},
		{"Hotels", e.Stats.Hotels},
		{"FSR", e.Stats.FSR},
		{"Storeys", e.Stats.Storeys},
	}
	for _, s := range stats {
		if s.v != nil {
			add(s.name, strconv.FormatFloat(*s.v, 'f', -1, 64))
		}
	}

	if e.Zoning.PreviousZoningCode != nil || e.Zoning.NewZoningCode != nil {
		add("Zoning", orUnknown(e.Zoning.PreviousZoningCode)+" -> "+orUnknown(e.Zoning.NewZoningCode))
	}
	if e.Location != nil {
		add("Location", strconv.FormatFloat(e.Location.Latitude, 'f', 6, 64)+", "+strconv.FormatFloat(e.Location.Longitude, 'f', 6, 64))
	}

	for _, p := range e.MinutesURLs {
		add("Minutes", provenance(p))
	}
	for _, p := range e.ReportURLs {
		add("Report", provenance(p))
	}

	add("Created", e.CreateDate.Format(constants.DateLayout))
	add("Updated", e.UpdateDate.Format(constants.DateLayout))
	return d
}

// IssuesToData lists invariant violations.
func IssuesToData(issues []entities.Issue) Data {
	d := Data{Headers: []string{"Entity", "Kind", "Message"}}
	for _, i := range issues {
		d.Rows = append(d.Rows, []string{dash(i.EntityID), string(i.Kind), i.Message})
	}
	return d
}

// ResultToData lists each observation outcome of a batch. Wide adds the
// match tier, score and merge reason.
func ResultToData(r *reconciler.Result, wide bool) Data {
	d := Data{
		Headers:         []string{"#", "Outcome", "Entity"},
		ColumnAlignment: []Align{AlignRight, AlignLeft, AlignLeft},
	}
	if wide {
		d.Headers = append(d.Headers, "Tier", "Score", "Reason", "Error")
		d.ColumnAlignment = append(d.ColumnAlignment, AlignLeft, AlignRight, AlignLeft, AlignLeft)
	}

	for _, item := range r.Items {
		row := []string{strconv.Itoa(item.Index), string(item.Outcome), dash(item.EntityID)}
		if wide {
			score := "-"
			if item.Score > 0 {
				score = strconv.FormatFloat(item.Score, 'f', 3, 64)
			}
			reason := "-"
			if item.Decision != nil {
				reason = item.Decision.Reason
			}
			row = append(row, dash(item.Tier), score, reason, dash(item.Error))
		}
		d.Rows = append(d.Rows, row)
	}
	return d
}

// ResultView is the serializable form of a batch result.
type ResultView struct {
	City     string                      `json:"city" yaml:"city"`
	Type     entities.Type               `json:"type" yaml:"type"`
	Duration string                      `json:"duration" yaml:"duration"`
	Stats    reconciler.ResultStatistics `json:"stats" yaml:"stats"`
	Items    []reconciler.Item           `json:"items" yaml:"items"`
	Errors   []string                    `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings []string                    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewResultView converts r for JSON or YAML output.
func NewResultView(r *reconciler.Result) ResultView {
	v := ResultView{
		City:     r.City,
		Type:     r.Type,
		Duration: r.Metadata.Duration.String(),
		Stats:    r.Metadata.Stats,
		Items:    r.Items,
		Warnings: r.Warnings,
	}
	for _, err := range r.Errors {
		v.Errors = append(v.Errors, err.Error())
	}
	return v
}

func provenance(p entities.Provenance) string {
	parts := []string{dash(p.Date)}
	if p.Status != "" {
		parts = append(parts, string(p.Status))
	}
	parts = append(parts, p.URL)
	return strings.Join(parts, "  ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orUnknown(s *string) string {
	if s == nil {
		return "?"
	}
	return *s
}

func buildingType(b *entities.BuildingType) string {
	if b == nil {
		return ""
	}
	return string(*b)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
