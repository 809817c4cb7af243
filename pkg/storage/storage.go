package storage

import (
	"context"
	"io"
)

// Store persists uploaded avatar files. Save writes the object under name,
// replacing any previous object with the same name, and returns the public
// path clients can fetch it from.
type Store interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}
