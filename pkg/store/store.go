// Package store provides destinations for downloaded episodes.
//
// A Destination buffers one download attempt. Nothing is visible under the
// episode's final name until Commit succeeds, so a failed or interrupted
// attempt can never be mistaken for a completed download.
package store

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrFinalized is returned when a destination is written to or committed
	// after Commit or Abort has already been called.
	ErrFinalized = errors.New("destination already finalized")
)

// Destination is a writable handle for a single download attempt.
type Destination interface {
	io.Writer

	// Commit publishes the written bytes under the final name.
	Commit() error

	// Abort discards everything written. Safe to call after Commit (no-op).
	Abort() error
}

// Store creates destinations for episodes.
type Store interface {
	// Create opens a fresh destination for item. Any previous uncommitted
	// attempt for the same item is discarded.
	Create(ctx context.Context, item int) (Destination, error)

	// Name returns the final object or file name for item.
	Name(item int) string

	// URI returns a human-readable location for item.
	URI(item int) string

	// Close releases any resources.
	Close() error
}

// Namer derives deterministic file names from episode numbers.
type Namer struct {
	// Prefix precedes the number (e.g. "CC").
	Prefix string `yaml:"prefix"`

	// Extension follows the number, with or without a leading dot.
	Extension string `yaml:"extension"`
}

// DefaultNamer produces "CC<n>.mp3".
func DefaultNamer() Namer {
	return Namer{Prefix: "CC", Extension: "mp3"}
}

// Name returns "<prefix><item>.<ext>".
func (n Namer) Name(item int) string {
	name := n.Prefix + strconv.Itoa(item)
	if ext := strings.TrimPrefix(n.Extension, "."); ext != "" {
		name += "." + ext
	}
	return name
}

// partSuffix marks in-progress local files.
const partSuffix = ".part"
