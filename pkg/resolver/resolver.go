package resolver

import (
	"iter"
	"slices"
)

// Candidate is one fully formed location to try for an episode.
type Candidate struct {
	Item     int
	Rule     string
	Priority int // 0 is tried first
	URL      string
}

// Resolver produces candidates from an ordered rule list.
type Resolver struct {
	rules []Rule
}

// New creates a resolver. The rule slice is copied, so later changes by the
// caller do not affect candidate order.
func New(rules []Rule) *Resolver {
	return &Resolver{rules: slices.Clone(rules)}
}

// Rules returns a copy of the configured rules in priority order.
func (r *Resolver) Rules() []Rule {
	return slices.Clone(r.rules)
}

// Len returns the number of candidates produced per item.
func (r *Resolver) Len() int {
	return len(r.rules)
}

// Candidates lazily yields one candidate per rule, in rule order.
// Callers that stop early (first success) never build the remaining URLs.
func (r *Resolver) Candidates(item int) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for i, rule := range r.rules {
			c := Candidate{
				Item:     item,
				Rule:     rule.Name,
				Priority: i,
				URL:      rule.URL(item),
			}
			if !yield(c) {
				return
			}
		}
	}
}

// All collects every candidate for item.
func (r *Resolver) All(item int) []Candidate {
	return slices.Collect(r.Candidates(item))
}
