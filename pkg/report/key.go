package report

import (
	"strings"
)

// KeyPrefix namespaces every Redis key written by episode-fetch.
const KeyPrefix = "episode-fetch"

// Key kinds.
const (
	KindOutcomes = "outcomes"
	KindCounts   = "counts"
)

// Key identifies a Redis structure belonging to one run.
type Key struct {
	// RunID is the unique identifier of the run (a UUID by default).
	RunID string

	// Kind is KindOutcomes or KindCounts.
	Kind string
}

// String generates a deterministic key string.
// Format: episode-fetch:run:<run-id>:<kind>
//
// Example:
//
//	episode-fetch:run:5f0c...:outcomes
func (k Key) String() string {
	parts := []string{KeyPrefix, "run"}

	if id := strings.TrimSpace(k.RunID); id != "" {
		parts = append(parts, id)
	}
	if k.Kind != "" {
		parts = append(parts, k.Kind)
	}

	return strings.Join(parts, ":")
}
