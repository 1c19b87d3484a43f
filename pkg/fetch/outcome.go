package fetch

import "time"

// Status is the terminal state of one item in a run.
type Status string

const (
	// StatusSuccess means one candidate was downloaded and committed.
	StatusSuccess Status = "success"

	// StatusExhausted means every candidate failed.
	StatusExhausted Status = "exhausted"

	// StatusCanceled means the run was stopped before the item finished.
	StatusCanceled Status = "canceled"
)

// Outcome is the final result for one item.
type Outcome struct {
	Item     int           `json:"item"`
	Status   Status        `json:"status"`
	Rule     string        `json:"rule,omitempty"` // rule that succeeded
	URL      string        `json:"url,omitempty"`  // candidate that succeeded
	Bytes    int64         `json:"bytes"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Succeeded reports whether the item was downloaded.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Error returns the failure message, or "" on success.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
