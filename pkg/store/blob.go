package store

import (
	"context"
	"fmt"
	"mime"
	"path"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
)

// BlobStore writes episodes to a gocloud.dev bucket.
// Works with S3-compatible storage, GCS, the local filesystem and memory.
type BlobStore struct {
	bucket    *blob.Bucket
	bucketURL string
	prefix    string
	namer     Namer
}

// NewBlobStore opens the bucket at bucketURL (e.g. "s3://archive?region=eu-west-1",
// "gs://archive", "file:///srv/podcasts", "mem://").
func NewBlobStore(ctx context.Context, bucketURL, prefix string, namer Namer) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}

	s := NewBlobStoreFromBucket(bucket, prefix, namer)
	s.bucketURL = bucketURL
	return s, nil
}

// NewBlobStoreFromBucket wraps an already opened bucket.
func NewBlobStoreFromBucket(bucket *blob.Bucket, prefix string, namer Namer) *BlobStore {
	return &BlobStore{
		bucket: bucket,
		prefix: prefix,
		namer:  namer,
	}
}

// Name returns the object key for item.
func (s *BlobStore) Name(item int) string {
	return path.Join(s.prefix, s.namer.Name(item))
}

// URI returns the bucket URL joined with the object key.
func (s *BlobStore) URI(item int) string {
	if s.bucketURL == "" {
		return s.Name(item)
	}
	return s.bucketURL + "#" + s.Name(item)
}

// Create opens a writer for item. The object only appears once Commit
// closes the writer; Abort cancels it.
func (s *BlobStore) Create(ctx context.Context, item int) (Destination, error) {
	key := s.Name(item)

	wctx, cancel := context.WithCancel(ctx)
	opts := &blob.WriterOptions{}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		opts.ContentType = ct
	}

	w, err := s.bucket.NewWriter(wctx, key, opts)
	if err != nil {
		cancel()
		StoreErrors.WithLabelValues("create").Inc()
		return nil, fmt.Errorf("open writer %s: %w", key, err)
	}

	return &blobDestination{writer: w, cancel: cancel, key: key}, nil
}

// Close closes the underlying bucket.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

type blobDestination struct {
	writer *blob.Writer
	cancel context.CancelFunc
	key    string
	done   bool
}

func (d *blobDestination) Write(p []byte) (int, error) {
	if d.done {
		return 0, ErrFinalized
	}
	n, err := d.writer.Write(p)
	if err != nil {
		StoreErrors.WithLabelValues("write").Inc()
	}
	return n, err
}

func (d *blobDestination) Commit() error {
	if d.done {
		return ErrFinalized
	}
	d.done = true
	defer d.cancel()

	if err := d.writer.Close(); err != nil {
		StoreErrors.WithLabelValues("commit").Inc()
		return fmt.Errorf("close writer %s: %w", d.key, err)
	}

	Commits.WithLabelValues("blob").Inc()
	return nil
}

func (d *blobDestination) Abort() error {
	if d.done {
		return nil
	}
	d.done = true

	// Cancelling before Close discards the pending object.
	d.cancel()
	_ = d.writer.Close()

	Aborts.WithLabelValues("blob").Inc()
	return nil
}
