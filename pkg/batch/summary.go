package batch

import (
	"time"

	"github.com/Sternrassler/episode-fetch/pkg/fetch"
)

// Summary aggregates the outcomes of one run.
type Summary struct {
	First    int
	Last     int
	Outcomes []fetch.Outcome // ordered by item
	Duration time.Duration

	Succeeded int
	Exhausted int
	Canceled  int
	Bytes     int64
}

func newSummary(first, last int, outcomes []fetch.Outcome, d time.Duration) *Summary {
	s := &Summary{
		First:    first,
		Last:     last,
		Outcomes: outcomes,
		Duration: d,
	}
	for _, o := range outcomes {
		switch o.Status {
		case fetch.StatusSuccess:
			s.Succeeded++
			s.Bytes += o.Bytes
		case fetch.StatusExhausted:
			s.Exhausted++
		case fetch.StatusCanceled:
			s.Canceled++
		}
	}
	return s
}

// Total returns the number of items in the range.
func (s *Summary) Total() int {
	return len(s.Outcomes)
}

// Failed returns the items whose candidates were all exhausted.
func (s *Summary) Failed() []int {
	var items []int
	for _, o := range s.Outcomes {
		if o.Status == fetch.StatusExhausted {
			items = append(items, o.Item)
		}
	}
	return items
}

// Outcome returns the outcome for item, if it is within the range.
func (s *Summary) Outcome(item int) (fetch.Outcome, bool) {
	if item < s.First || item > s.Last || item-s.First >= len(s.Outcomes) {
		return fetch.Outcome{}, false
	}
	return s.Outcomes[item-s.First], true
}
