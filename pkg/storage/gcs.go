package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// NewGCSClient creates a Google Cloud Storage client. If credsPath is empty,
// Application Default Credentials are used.
func NewGCSClient(ctx context.Context, credsPath string) (*gcs.Client, error) {
	if credsPath == "" {
		return gcs.NewClient(ctx)
	}
	return gcs.NewClient(ctx, option.WithCredentialsFile(credsPath))
}

// GCSStore keeps avatars in a bucket under the "avatar/" prefix. Objects are
// overwritten in place, matching the disk backend's semantics.
type GCSStore struct {
	Client *gcs.Client
	Bucket string
}

func NewGCSStore(client *gcs.Client, bucket string) *GCSStore {
	return &GCSStore{Client: client, Bucket: bucket}
}

func (s *GCSStore) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	object := path.Join("avatar", name)
	wc := s.Client.Bucket(s.Bucket).Object(object).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0 // avatars are small, skip chunking
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("write avatar object: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("flush avatar object: %w", err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.Bucket, object), nil
}

var _ Store = (*GCSStore)(nil)
