package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes episodes into an existing directory.
type LocalStore struct {
	dir   string
	namer Namer
}

// NewLocalStore creates a store rooted at dir. The directory must already exist.
func NewLocalStore(dir string, namer Namer) (*LocalStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("destination directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("destination %s is not a directory", dir)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve destination directory: %w", err)
	}

	return &LocalStore{dir: abs, namer: namer}, nil
}

// Name returns the episode file name.
func (s *LocalStore) Name(item int) string {
	return s.namer.Name(item)
}

// Path returns the final path for item.
func (s *LocalStore) Path(item int) string {
	return filepath.Join(s.dir, s.namer.Name(item))
}

// URI returns file:///path for item.
func (s *LocalStore) URI(item int) string {
	return "file://" + filepath.ToSlash(s.Path(item))
}

// Create truncates or creates "<name>.part" for a new attempt.
func (s *LocalStore) Create(ctx context.Context, item int) (Destination, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final := s.Path(item)
	temp := final + partSuffix

	f, err := os.OpenFile(temp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		StoreErrors.WithLabelValues("create").Inc()
		return nil, fmt.Errorf("create %s: %w", temp, err)
	}

	return &localDestination{file: f, temp: temp, final: final}, nil
}

// Close is a no-op for the local filesystem.
func (s *LocalStore) Close() error {
	return nil
}

type localDestination struct {
	file  *os.File
	temp  string
	final string
	done  bool
}

func (d *localDestination) Write(p []byte) (int, error) {
	if d.done {
		return 0, ErrFinalized
	}
	n, err := d.file.Write(p)
	if err != nil {
		StoreErrors.WithLabelValues("write").Inc()
	}
	return n, err
}

// Commit flushes the part file and renames it over the final name.
func (d *localDestination) Commit() error {
	if d.done {
		return ErrFinalized
	}

	if err := d.file.Sync(); err != nil {
		StoreErrors.WithLabelValues("commit").Inc()
		d.discard()
		return fmt.Errorf("sync %s: %w", d.temp, err)
	}
	if err := d.file.Close(); err != nil {
		StoreErrors.WithLabelValues("commit").Inc()
		d.discard()
		return fmt.Errorf("close %s: %w", d.temp, err)
	}
	if err := os.Rename(d.temp, d.final); err != nil {
		StoreErrors.WithLabelValues("commit").Inc()
		d.discard()
		return fmt.Errorf("rename %s: %w", d.temp, err)
	}

	d.done = true
	Commits.WithLabelValues("local").Inc()
	return nil
}

// Abort removes the part file.
func (d *localDestination) Abort() error {
	if d.done {
		return nil
	}
	if err := d.discard(); err != nil {
		StoreErrors.WithLabelValues("abort").Inc()
		return err
	}
	Aborts.WithLabelValues("local").Inc()
	return nil
}

func (d *localDestination) discard() error {
	d.done = true
	d.file.Close()
	if err := os.Remove(d.temp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", d.temp, err)
	}
	return nil
}
