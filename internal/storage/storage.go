// Package storage writes image objects to S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	// ErrObjectExists is returned by a non-overwriting Put when the key is taken.
	ErrObjectExists = errors.New("object already exists")
	// ErrObjectNotFound is returned by Get for a missing key.
	ErrObjectNotFound = errors.New("object not found")
)

// PutOptions controls a single write.
type PutOptions struct {
	ContentType string
	// Overwrite allows replacing an existing object. Uploaded originals never set it.
	Overwrite bool
}

// IObjectStorage defines the object store operations the services rely on.
type IObjectStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// PublicURL returns the dereferenceable URL of key. No signing is involved.
	PublicURL(key string) string
}

// publicURL joins base and key with exactly one slash.
func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
