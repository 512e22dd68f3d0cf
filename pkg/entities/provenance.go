package entities

import "slices"

// Provenance records one source document that contributed to an entity.
// Items are uniquely keyed by (URL, Date, Status).
type Provenance struct {
	URL    string `json:"url" yaml:"url"`
	Date   string `json:"date" yaml:"date"` // YYYY-MM-DD
	Status Status `json:"status" yaml:"status"`
	Title  string `json:"title,omitempty" yaml:"title,omitempty"`
}

// Key is the dedupe key of a provenance item.
type Key struct {
	URL    string
	Date   string
	Status Status
}

// Key returns the (url, date, status) triple identifying the item.
func (p Provenance) Key() Key {
	return Key{URL: p.URL, Date: p.Date, Status: p.Status}
}

// Union appends every item of incoming whose key is not already present in
// existing (or earlier in incoming). Order is preserved and nothing is dropped.
func Union(existing, incoming []Provenance) []Provenance {
	out := make([]Provenance, 0, len(existing)+len(incoming))
	seen := make(map[Key]struct{}, len(existing)+len(incoming))
	for _, list := range [][]Provenance{existing, incoming} {
		for _, p := range list {
			if _, ok := seen[p.Key()]; ok {
				continue
			}
			seen[p.Key()] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Latest returns the item with the greatest date. On ties the earliest item
// in the list wins. Items without a date are ignored.
func Latest(items []Provenance) (Provenance, bool) {
	var (
		latest Provenance
		found  bool
	)
	for _, p := range items {
		if p.Date == "" {
			continue
		}
		if !found || p.Date > latest.Date {
			latest = p
			found = true
		}
	}
	return latest, found
}

// LatestOf returns the latest item across several lists.
func LatestOf(lists ...[]Provenance) (Provenance, bool) {
	return Latest(slices.Concat(lists...))
}

// Duplicates returns the keys that occur more than once in items.
func Duplicates(items []Provenance) []Key {
	seen := make(map[Key]int, len(items))
	var dups []Key
	for _, p := range items {
		seen[p.Key()]++
		if seen[p.Key()] == 2 {
			dups = append(dups, p.Key())
		}
	}
	return dups
}

// LatestMinutes returns the latest minutes provenance of the entity.
func (e *Entity) LatestMinutes() (Provenance, bool) {
	return Latest(e.MinutesURLs)
}

// LatestDate returns the latest provenance date across both lists, or the
// empty string when the entity has no dated provenance.
func (e *Entity) LatestDate() string {
	p, _ := LatestOf(e.MinutesURLs, e.ReportURLs)
	return p.Date
}

// LatestMinutes returns the latest minutes provenance of the observation.
func (o *Observation) LatestMinutes() (Provenance, bool) {
	return Latest(o.MinutesURLs)
}

// ProvenanceDates returns every provenance date carried by the observation.
func (o *Observation) ProvenanceDates() []string {
	var dates []string
	for _, p := range slices.Concat(o.MinutesURLs, o.ReportURLs) {
		if p.Date != "" {
			dates = append(dates, p.Date)
		}
	}
	return dates
}

// StatusDate returns the latest provenance date recorded for status across
// the lists, or the empty string.
func StatusDate(status Status, lists ...[]Provenance) string {
	var date string
	for _, list := range lists {
		for _, p := range list {
			if p.Status == status && p.Date > date {
				date = p.Date
			}
		}
	}
	return date
}

// Fill sets the date field for status when it is empty and date is known.
func (d *Dates) Fill(status Status, date string) {
	if date == "" {
		return
	}
	if field := d.For(status); field != nil && *field == nil {
		*field = &date
	}
}
