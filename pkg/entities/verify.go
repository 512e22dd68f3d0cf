package entities

import (
	"fmt"
)

// IssueKind classifies an invariant violation found by Verify.
type IssueKind string

// Issue kinds.
const (
	IssueDuplicateProvenance    IssueKind = "duplicate_provenance"
	IssueStatusWithoutDate      IssueKind = "status_without_date"
	IssueDuplicateApplicationID IssueKind = "duplicate_application_id"
	IssueMissingStatus          IssueKind = "missing_status"
	IssueMissingID              IssueKind = "missing_id"
	IssueDuplicateID            IssueKind = "duplicate_id"
)

// Issue is a single invariant violation.
type Issue struct {
	EntityID string    `json:"entityId" yaml:"entityId"`
	Kind     IssueKind `json:"kind" yaml:"kind"`
	Message  string    `json:"message" yaml:"message"`
}

// Verify checks a list of entities against the record invariants and
// reports every violation. Legacy data is expected to fail some checks, so
// nothing is repaired here.
func Verify(list []Entity) []Issue {
	var issues []Issue

	type scope struct {
		city string
		typ  Type
		app  string
	}
	ids := make(map[string]struct{}, len(list))
	apps := make(map[scope]string)

	for i := range list {
		e := &list[i]

		if e.ID == "" {
			issues = append(issues, Issue{Kind: IssueMissingID, Message: fmt.Sprintf("entity at %q has no id", e.Address)})
		} else if _, ok := ids[e.ID]; ok {
			issues = append(issues, Issue{EntityID: e.ID, Kind: IssueDuplicateID, Message: "id is used by more than one entity"})
		} else {
			ids[e.ID] = struct{}{}
		}

		for _, k := range append(Duplicates(e.ReportURLs), Duplicates(e.MinutesURLs)...) {
			issues = append(issues, Issue{
				EntityID: e.ID,
				Kind:     IssueDuplicateProvenance,
				Message:  fmt.Sprintf("provenance (%s, %s, %s) appears more than once", k.URL, k.Date, k.Status),
			})
		}

		switch {
		case e.Status == "":
			issues = append(issues, Issue{EntityID: e.ID, Kind: IssueMissingStatus, Message: "status is empty"})
		case !e.Status.Valid():
			issues = append(issues, Issue{EntityID: e.ID, Kind: IssueMissingStatus, Message: fmt.Sprintf("unknown status %q", e.Status)})
		default:
			if field := e.Dates.For(e.Status); field != nil && *field == nil {
				issues = append(issues, Issue{
					EntityID: e.ID,
					Kind:     IssueStatusWithoutDate,
					Message:  fmt.Sprintf("status is %q but no matching date is set", e.Status),
				})
			}
		}

		if e.ApplicationID != nil && *e.ApplicationID != "" {
			key := scope{city: e.City, typ: e.Type, app: *e.ApplicationID}
			if other, ok := apps[key]; ok {
				issues = append(issues, Issue{
					EntityID: e.ID,
					Kind:     IssueDuplicateApplicationID,
					Message:  fmt.Sprintf("application id %s is also used by %s", *e.ApplicationID, other),
				})
			} else {
				apps[key] = e.ID
			}
		}
	}

	return issues
}
