// Package merge combines a stored entity with a newly resolved observation.
//
// The preferred side, chosen by a Strategy, wins scalar conflicts, but a
// null on the preferred side never hides the other side's value. Status is
// chosen separately by recency, and provenance is always unioned.
package merge

import (
	"github.com/agentstation/utc"

	"github.com/agentstation/civicmap/pkg/entities"
)

// Decision records how a merge was resolved.
type Decision struct {
	Preferred  Side   `json:"preferred" yaml:"preferred"`
	Reason     string `json:"reason" yaml:"reason"`
	StatusFrom Side   `json:"statusFrom" yaml:"statusFrom"`
}

// Merger merges observations into entities.
type Merger struct {
	strategy Strategy
	now      func() utc.Time
}

// Option configures a Merger.
type Option func(*Merger)

// WithStrategy overrides the preference strategy.
func WithStrategy(s Strategy) Option {
	return func(m *Merger) {
		if s != nil {
			m.strategy = s
		}
	}
}

// WithClock overrides the clock used for updateDate.
func WithClock(now func() utc.Time) Option {
	return func(m *Merger) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Merger using LifecycleStrategy.
func New(opts ...Option) *Merger {
	m := &Merger{strategy: LifecycleStrategy{}, now: utc.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge merges incoming into existing with the default Merger.
func Merge(existing entities.Entity, incoming entities.Observation) entities.Entity {
	merged, _ := New().Merge(existing, incoming)
	return merged
}

// Merge returns the merged entity. Neither input is modified and the result
// keeps existing's id.
func (m *Merger) Merge(existing entities.Entity, incoming entities.Observation) (entities.Entity, Decision) {
	exLatest, _ := existing.LatestMinutes()
	inLatest, _ := incoming.LatestMinutes()

	preferred, reason := m.strategy.Prefer(
		View{Type: existing.Type, LatestMinutes: exLatest},
		View{Type: incoming.Type, LatestMinutes: inLatest},
	)

	// Scalars: a = preferred, b = other
	ex := fromEntity(existing)
	in := fromObservation(incoming)
	a, b := ex, in
	if preferred == SideIncoming {
		a, b = in, ex
	}

	out := existing.Clone()
	out.ApplicationID = coalesce(a.ApplicationID, b.ApplicationID)
	out.Applicant = coalesce(a.Applicant, b.Applicant)
	out.Behalf = coalesce(a.Behalf, b.Behalf)
	out.Description = coalesceString(a.Description, b.Description)
	out.BuildingType = coalesce(a.BuildingType, b.BuildingType)
	out.Stats = mergeStats(a.Stats, b.Stats)
	out.Zoning = mergeZoning(a.Zoning, b.Zoning)
	out.Dates = mergeDates(a.Dates, b.Dates)

	if out.City == "" {
		out.City = incoming.City
	}
	if out.MetroCity == "" {
		out.MetroCity = incoming.MetroCity
	}
	if out.Address == "" {
		out.Address = incoming.Address
	}
	if out.Location == nil && incoming.Location != nil {
		loc := *incoming.Location
		out.Location = &loc
	}

	// Status follows time, not source trust
	statusFrom := SideExisting
	incomingStatus := incoming.Status
	if incomingStatus == "" {
		incomingStatus = inLatest.Status
	}
	if incomingStatus != "" && (existing.Status == "" || inLatest.Date >= exLatest.Date) {
		statusFrom = SideIncoming
		out.Status = incomingStatus
	}

	out.ReportURLs = entities.Union(existing.ReportURLs, incoming.ReportURLs)
	out.MinutesURLs = entities.Union(existing.MinutesURLs, incoming.MinutesURLs)
	out.Dates.Fill(out.Status, entities.StatusDate(out.Status, out.MinutesURLs, out.ReportURLs))

	if !incoming.ObservedAt.IsZero() && (existing.CreateDate.IsZero() || incoming.ObservedAt.Time.Before(existing.CreateDate.Time)) {
		out.CreateDate = incoming.ObservedAt
	}
	out.UpdateDate = m.now()

	return out, Decision{Preferred: preferred, Reason: reason, StatusFrom: statusFrom}
}

// fields is the scalar part shared by entities and observations.
type fields struct {
	ApplicationID *string
	Applicant     *string
	Behalf        *string
	Description   string
	BuildingType  *entities.BuildingType
	Stats         entities.Stats
	Zoning        entities.Zoning
	Dates         entities.Dates
}

func fromEntity(e entities.Entity) fields {
	return fields{
		ApplicationID: e.ApplicationID,
		Applicant:     e.Applicant,
		Behalf:        e.Behalf,
		Description:   e.Description,
		BuildingType:  e.BuildingType,
		Stats:         e.Stats,
		Zoning:        e.Zoning,
		Dates:         e.Dates,
	}
}

func fromObservation(o entities.Observation) fields {
	return fields{
		ApplicationID: o.ApplicationID,
		Applicant:     o.Applicant,
		Behalf:        o.Behalf,
		Description:   o.Description,
		BuildingType:  o.BuildingType,
		Stats:         o.Stats,
		Zoning:        o.Zoning,
		Dates:         o.Dates,
	}
}

// coalesce returns a copy of the first non-nil value.
func coalesce[T any](a, b *T) *T {
	v := a
	if v == nil {
		v = b
	}
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// coalesceString treats the empty description as missing.
func coalesceString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func mergeStats(a, b entities.Stats) entities.Stats {
	return entities.Stats{
		Buildings: coalesce(a.Buildings, b.Buildings),
		Stratas:   coalesce(a.Stratas, b.Stratas),
		Rentals:   coalesce(a.Rentals, b.Rentals),
		Hotels:    coalesce(a.Hotels, b.Hotels),
		FSR:       coalesce(a.FSR, b.FSR),
		Storeys:   coalesce(a.Storeys, b.Storeys),
	}
}

func mergeZoning(a, b entities.Zoning) entities.Zoning {
	return entities.Zoning{
		PreviousZoningCode:        coalesce(a.PreviousZoningCode, b.PreviousZoningCode),
		PreviousZoningDescription: coalesce(a.PreviousZoningDescription, b.PreviousZoningDescription),
		NewZoningCode:             coalesce(a.NewZoningCode, b.NewZoningCode),
		NewZoningDescription:      coalesce(a.NewZoningDescription, b.NewZoningDescription),
	}
}

func mergeDates(a, b entities.Dates) entities.Dates {
	return entities.Dates{
		AppliedDate:       coalesce(a.AppliedDate, b.AppliedDate),
		PublicHearingDate: coalesce(a.PublicHearingDate, b.PublicHearingDate),
		ApprovalDate:      coalesce(a.ApprovalDate, b.ApprovalDate),
		DenialDate:        coalesce(a.DenialDate, b.DenialDate),
		WithdrawnDate:     coalesce(a.WithdrawnDate, b.WithdrawnDate),
	}
}
