// Package gcs stages serialized dataset artifacts in Google Cloud Storage,
// where AutoML ingests them from.
package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Store implements the textclass ArtifactStore on a GCS bucket.
type Store struct {
	client *storage.Client
	bucket string
}

// New creates a Store writing into the given bucket. Authentication comes
// from the supplied client options.
func New(ctx context.Context, bucket string, opts ...option.ClientOption) (*Store, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Put uploads the artifact and returns its gs:// URI.
func (s *Store) Put(ctx context.Context, name string, data []byte) (string, error) {
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "text/csv"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("writing object %q: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing object %q: %w", name, err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}
