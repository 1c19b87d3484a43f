package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the fetcher.
var (
	// ErrExhausted is returned when every candidate for an item failed.
	ErrExhausted = errors.New("all candidates failed")

	// ErrUnsuccessfulStatus is wrapped by FetchError for non-2xx responses.
	ErrUnsuccessfulStatus = errors.New("unsuccessful response status")
)

// ErrorClass represents a classification of candidate failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses (usually 403/404: wrong origin).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx and other non-2xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassIO represents failures while streaming the body to the destination.
	ErrorClassIO ErrorClass = "io"
)

// FetchError describes why one candidate attempt failed.
type FetchError struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s error (status %d): %v",
			e.URL, e.ErrorClass, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s error: %v", e.URL, e.ErrorClass, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ClassOf returns the ErrorClass of err, or "" when err is not a FetchError.
func ClassOf(err error) ErrorClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.ErrorClass
	}
	return ""
}

// classifyStatus categorizes a non-2xx HTTP status.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

func isSuccess(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}
