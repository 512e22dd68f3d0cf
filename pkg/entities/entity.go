// Package entities defines the durable Entity record, the single-source
// Observation it is built from, and the Provenance items that tie both back
// to the civic documents they were extracted from.
package entities

import (
	"github.com/agentstation/utc"
)

// Type is the kind of civic development application.
type Type string

// String returns the string representation of a Type.
func (t Type) String() string {
	return string(t)
}

// Application types.
const (
	TypeRezoning          Type = "rezoning"
	TypeDevelopmentPermit Type = "development permit"
)

// Types lists every known application type.
var Types = []Type{TypeRezoning, TypeDevelopmentPermit}

// Valid reports whether t is a known application type.
func (t Type) Valid() bool {
	return t == TypeRezoning || t == TypeDevelopmentPermit
}

// Status is the lifecycle stage of an application.
type Status string

// String returns the string representation of a Status.
func (s Status) String() string {
	return string(s)
}

// Lifecycle statuses.
const (
	StatusApplied       Status = "applied"
	StatusPublicHearing Status = "public hearing"
	StatusApproved      Status = "approved"
	StatusDenied        Status = "denied"
	StatusWithdrawn     Status = "withdrawn"
)

// Statuses lists every lifecycle status in lifecycle order.
var Statuses = []Status{StatusApplied, StatusPublicHearing, StatusApproved, StatusDenied, StatusWithdrawn}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// BuildingType classifies the proposed development.
type BuildingType string

// Building types.
const (
	BuildingSingleFamily BuildingType = "single-family residential"
	BuildingTownhouse    BuildingType = "townhouse"
	BuildingMixedUse     BuildingType = "mixed use"
	BuildingMultiFamily  BuildingType = "multi-family residential"
	BuildingIndustrial   BuildingType = "industrial"
	BuildingCommercial   BuildingType = "commercial"
	BuildingOther        BuildingType = "other"
)

// BuildingTypes lists every building type.
var BuildingTypes = []BuildingType{
	BuildingSingleFamily, BuildingTownhouse, BuildingMixedUse, BuildingMultiFamily,
	BuildingIndustrial, BuildingCommercial, BuildingOther,
}

// Dates holds one nullable YYYY-MM-DD date per status transition.
type Dates struct {
	AppliedDate       *string `json:"appliedDate" yaml:"appliedDate"`
	PublicHearingDate *string `json:"publicHearingDate" yaml:"publicHearingDate"`
	ApprovalDate      *string `json:"approvalDate" yaml:"approvalDate"`
	DenialDate        *string `json:"denialDate" yaml:"denialDate"`
	WithdrawnDate     *string `json:"withdrawnDate" yaml:"withdrawnDate"`
}

// For returns the date field that records the given status, or nil for an unknown status.
func (d *Dates) For(status Status) **string {
	switch status {
	case StatusApplied:
		return &d.AppliedDate
	case StatusPublicHearing:
		return &d.PublicHearingDate
	case StatusApproved:
		return &d.ApprovalDate
	case StatusDenied:
		return &d.DenialDate
	case StatusWithdrawn:
		return &d.WithdrawnDate
	default:
		return nil
	}
}

// Stats holds the numeric facts about a development; every field is nullable.
type Stats struct {
	Buildings *float64 `json:"buildings" yaml:"buildings"`
	Stratas   *float64 `json:"stratas" yaml:"stratas"`
	Rentals   *float64 `json:"rentals" yaml:"rentals"`
	Hotels    *float64 `json:"hotels" yaml:"hotels"`
	FSR       *float64 `json:"fsr" yaml:"fsr"`
	Storeys   *float64 `json:"storeys" yaml:"storeys"`
}

// Zoning holds the previous and proposed zoning of the site.
type Zoning struct {
	PreviousZoningCode        *string `json:"previousZoningCode" yaml:"previousZoningCode"`
	PreviousZoningDescription *string `json:"previousZoningDescription" yaml:"previousZoningDescription"`
	NewZoningCode             *string `json:"newZoningCode" yaml:"newZoningCode"`
	NewZoningDescription      *string `json:"newZoningDescription" yaml:"newZoningDescription"`
}

// Location is a geocoded point.
type Location struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Entity is the durable, merged record of one real-world application.
type Entity struct {
	// Core identity; ID is assigned once and never changed by a merge
	ID        string `json:"id" yaml:"id"`
	City      string `json:"city" yaml:"city"`
	MetroCity string `json:"metroCity" yaml:"metroCity"`
	Type      Type   `json:"type" yaml:"type"`

	ApplicationID *string       `json:"applicationId" yaml:"applicationId"`
	Address       string        `json:"address" yaml:"address"` // May list several comma-separated addresses
	Applicant     *string       `json:"applicant" yaml:"applicant"`
	Behalf        *string       `json:"behalf" yaml:"behalf"`
	Description   string        `json:"description" yaml:"description"`
	BuildingType  *BuildingType `json:"buildingType" yaml:"buildingType"`
	Status        Status        `json:"status" yaml:"status"`

	Dates  Dates  `json:"dates" yaml:"dates"`
	Stats  Stats  `json:"stats" yaml:"stats"`
	Zoning Zoning `json:"zoning" yaml:"zoning"`

	// Every source document that contributed to this entity
	ReportURLs  []Provenance `json:"reportUrls" yaml:"reportUrls"`
	MinutesURLs []Provenance `json:"minutesUrls" yaml:"minutesUrls"`

	Location *Location `json:"location" yaml:"location"`

	CreateDate utc.Time `json:"createDate" yaml:"createDate"`
	UpdateDate utc.Time `json:"updateDate" yaml:"updateDate"`
}

// Observation is a single-source, not-yet-merged view of an application.
// It carries one coherent status and the provenance of one source document.
type Observation struct {
	City      string `json:"city" yaml:"city"`
	MetroCity string `json:"metroCity" yaml:"metroCity"`
	Type      Type   `json:"type" yaml:"type"`

	// ID is only set when an existing entity is being re-processed.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	ApplicationID *string       `json:"applicationId" yaml:"applicationId"`
	Address       string        `json:"address" yaml:"address"`
	Applicant     *string       `json:"applicant" yaml:"applicant"`
	Behalf        *string       `json:"behalf" yaml:"behalf"`
	Description   string        `json:"description" yaml:"description"`
	BuildingType  *BuildingType `json:"buildingType" yaml:"buildingType"`
	Status        Status        `json:"status" yaml:"status"`

	Dates  Dates  `json:"dates" yaml:"dates"`
	Stats  Stats  `json:"stats" yaml:"stats"`
	Zoning Zoning `json:"zoning" yaml:"zoning"`

	ReportURLs  []Provenance `json:"reportUrls" yaml:"reportUrls"`
	MinutesURLs []Provenance `json:"minutesUrls" yaml:"minutesUrls"`

	Location *Location `json:"location" yaml:"location"`

	// ObservedAt is when the observation was extracted.
	ObservedAt utc.Time `json:"observedAt" yaml:"observedAt"`
}

// NewEntity creates an entity from an observation that matched nothing.
// The status falls back to the status of the latest provenance entry, and
// the matching date field is filled from provenance when the observation
// left it empty.
func NewEntity(id string, obs Observation, now utc.Time) Entity {
	created := obs.ObservedAt
	if created.IsZero() {
		created = now
	}

	status := obs.Status
	if status == "" {
		if latest, ok := LatestOf(obs.MinutesURLs, obs.ReportURLs); ok {
			status = latest.Status
		}
	}

	e := Entity{
		ID:            id,
		City:          obs.City,
		MetroCity:     obs.MetroCity,
		Type:          obs.Type,
		ApplicationID: cloneString(obs.ApplicationID),
		Address:       obs.Address,
		Applicant:     cloneString(obs.Applicant),
		Behalf:        cloneString(obs.Behalf),
		Description:   obs.Description,
		Status:        status,
		Dates:         obs.Dates.Clone(),
		Stats:         obs.Stats.Clone(),
		Zoning:        obs.Zoning.Clone(),
		ReportURLs:    Union(nil, obs.ReportURLs),
		MinutesURLs:   Union(nil, obs.MinutesURLs),
		Location:      cloneLocation(obs.Location),
		CreateDate:    created,
		UpdateDate:    now,
	}
	if obs.BuildingType != nil {
		bt := *obs.BuildingType
		e.BuildingType = &bt
	}
	e.Dates.Fill(status, StatusDate(status, e.MinutesURLs, e.ReportURLs))
	return e
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	out := e
	out.ApplicationID = cloneString(e.ApplicationID)
	out.Applicant = cloneString(e.Applicant)
	out.Behalf = cloneString(e.Behalf)
	if e.BuildingType != nil {
		bt := *e.BuildingType
		out.BuildingType = &bt
	}
	out.Dates = e.Dates.Clone()
	out.Stats = e.Stats.Clone()
	out.Zoning = e.Zoning.Clone()
	out.ReportURLs = append([]Provenance(nil), e.ReportURLs...)
	out.MinutesURLs = append([]Provenance(nil), e.MinutesURLs...)
	out.Location = cloneLocation(e.Location)
	return out
}

// Clone returns a deep copy of the dates.
func (d Dates) Clone() Dates {
	return Dates{
		AppliedDate:       cloneString(d.AppliedDate),
		PublicHearingDate: cloneString(d.PublicHearingDate),
		ApprovalDate:      cloneString(d.ApprovalDate),
		DenialDate:        cloneString(d.DenialDate),
		WithdrawnDate:     cloneString(d.WithdrawnDate),
	}
}

// Clone returns a deep copy of the stats.
func (s Stats) Clone() Stats {
	return Stats{
		Buildings: cloneFloat(s.Buildings),
		Stratas:   cloneFloat(s.Stratas),
		Rentals:   cloneFloat(s.Rentals),
		Hotels:    cloneFloat(s.Hotels),
		FSR:       cloneFloat(s.FSR),
		Storeys:   cloneFloat(s.Storeys),
	}
}

// Clone returns a deep copy of the zoning.
func (z Zoning) Clone() Zoning {
	return Zoning{
		PreviousZoningCode:        cloneString(z.PreviousZoningCode),
		PreviousZoningDescription: cloneString(z.PreviousZoningDescription),
		NewZoningCode:             cloneString(z.NewZoningCode),
		NewZoningDescription:      cloneString(z.NewZoningDescription),
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneLocation(l *Location) *Location {
	if l == nil {
		return nil
	}
	v := *l
	return &v
}
