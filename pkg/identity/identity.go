// Package identity decides whether a new observation refers to an entity
// that already exists.
//
// Tiers are tried in order and the first success wins: exact entity id,
// application id within the type, then fuzzy address within the city and
// type. The fuzzy tier accepts the first eligible candidate it finds, not
// the best scoring one.
package identity

import (
	"regexp"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/agentstation/civicmap/pkg/constants"
	"github.com/agentstation/civicmap/pkg/entities"
	"github.com/agentstation/civicmap/pkg/errors"
)

// Tier is the rule that produced a match.
type Tier int

// Match tiers.
const (
	TierNone Tier = iota
	TierID
	TierApplicationID
	TierAddress
)

// String returns the string representation of a Tier.
func (t Tier) String() string {
	switch t {
	case TierID:
		return "id"
	case TierApplicationID:
		return "application_id"
	case TierAddress:
		return "address"
	default:
		return "none"
	}
}

// Match is the outcome of resolving one observation.
type Match struct {
	Entity *entities.Entity // nil when nothing matched
	Tier   Tier
	Score  float64 // similarity, set for TierAddress only
}

// Found reports whether an existing entity matched.
func (m Match) Found() bool {
	return m.Entity != nil
}

var numberPattern = regexp.MustCompile(`\d+`)

// Resolver matches observations against candidate entities.
type Resolver struct {
	threshold float64
	metric    strutil.StringMetric
}

// Option configures a Resolver.
type Option func(*Resolver) error

// WithThreshold sets the minimum (exclusive) address similarity.
func WithThreshold(threshold float64) Option {
	return func(r *Resolver) error {
		if threshold < 0 || threshold > 1 {
			return errors.NewValidationError("threshold", threshold, "must be between 0 and 1")
		}
		r.threshold = threshold
		return nil
	}
}

// WithMetric replaces the address similarity metric.
func WithMetric(metric strutil.StringMetric) Option {
	return func(r *Resolver) error {
		if metric == nil {
			return errors.NewValidationError("metric", nil, "metric is required")
		}
		r.metric = metric
		return nil
	}
}

// New creates a Resolver using case-insensitive Sorensen-Dice bigram
// similarity and the default threshold.
func New(opts ...Option) (*Resolver, error) {
	dice := metrics.NewSorensenDice()
	dice.CaseSensitive = false
	dice.NgramSize = 2

	r := &Resolver{
		threshold: constants.AddressSimilarityThreshold,
		metric:    dice,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Resolve finds the entity obs refers to among candidates. Candidates
// should already be scoped to the observation's type; city scoping of the
// application-id tier is the caller's choice.
func (r *Resolver) Resolve(obs entities.Observation, candidates []entities.Entity) Match {
	if obs.ID != "" {
		for i := range candidates {
			if candidates[i].ID == obs.ID {
				return Match{Entity: &candidates[i], Tier: TierID}
			}
		}
	}

	if obs.ApplicationID != nil && *obs.ApplicationID != "" {
		for i := range candidates {
			c := &candidates[i]
			if c.Type == obs.Type && c.ApplicationID != nil && *c.ApplicationID == *obs.ApplicationID {
				return Match{Entity: c, Tier: TierApplicationID}
			}
		}
	}

	if obs.Address == "" {
		return Match{}
	}
	numbers := numberSet(obs.Address)
	for i := range candidates {
		c := &candidates[i]
		if c.City != obs.City || c.Type != obs.Type || c.Address == "" {
			continue
		}
		if obs.ID != "" && c.ID == obs.ID {
			continue
		}
		if !numbersSubset(c.Address, numbers) {
			continue
		}
		if score := r.Similarity(obs.Address, c.Address); score > r.threshold {
			return Match{Entity: c, Tier: TierAddress, Score: score}
		}
	}

	return Match{}
}

// Similarity scores two addresses between 0 and 1.
func (r *Resolver) Similarity(a, b string) float64 {
	return strutil.Similarity(a, b, r.metric)
}

// Numbers returns the numeric tokens of an address in order.
func Numbers(address string) []string {
	return numberPattern.FindAllString(address, -1)
}

func numberSet(address string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, n := range Numbers(address) {
		set[n] = struct{}{}
	}
	return set
}

// numbersSubset reports whether every number in address is in set.
func numbersSubset(address string, set map[string]struct{}) bool {
	for _, n := range Numbers(address) {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}
