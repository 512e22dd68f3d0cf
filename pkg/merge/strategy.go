package merge

import (
	"github.com/agentstation/civicmap/pkg/entities"
)

// Side identifies one of the two inputs of a merge.
type Side string

// Merge sides.
const (
	SideExisting Side = "existing"
	SideIncoming Side = "incoming"
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == SideExisting {
		return SideIncoming
	}
	return SideExisting
}

// View is the part of each side a Strategy decides on.
type View struct {
	Type          entities.Type
	LatestMinutes entities.Provenance // zero when the side has no dated minutes
}

// Strategy picks the side whose scalar values win conflicts.
type Strategy interface {
	// Name returns a short strategy name.
	Name() string
	// Prefer returns the preferred side and the reason for the choice.
	Prefer(existing, incoming View) (Side, string)
}

// LifecycleStrategy protects the earliest lifecycle stages of a rezoning,
// whose application details are the most complete, and otherwise trusts the
// newest scrape of a development permit.
type LifecycleStrategy struct{}

var _ Strategy = LifecycleStrategy{}

// Name implements Strategy.
func (LifecycleStrategy) Name() string {
	return "lifecycle"
}

// Prefer implements Strategy.
func (LifecycleStrategy) Prefer(existing, incoming View) (Side, string) {
	if existing.LatestMinutes.Date == incoming.LatestMinutes.Date {
		return SideIncoming, "same latest minutes date, treated as a correction"
	}
	if existing.Type == entities.TypeDevelopmentPermit {
		return SideIncoming, "development permits prefer the newest observation"
	}
	for _, status := range []entities.Status{entities.StatusApplied, entities.StatusPublicHearing} {
		if existing.LatestMinutes.Status == status {
			return SideExisting, "existing side is at " + string(status)
		}
		if incoming.LatestMinutes.Status == status {
			return SideIncoming, "incoming side is at " + string(status)
		}
	}
	return SideExisting, "default to existing"
}
