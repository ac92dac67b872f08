// Package storage persists uploaded audio under unique, sanitized names.
package storage

import (
	"context"
	"io"
)

// Object describes a stored upload.
type Object struct {
	Name string // stored name, unique per save
	Path string // full path or object URL
	Size int64
}

// ObjectReader streams a stored upload back.
type ObjectReader struct {
	io.ReadCloser
	Size int64
}

type Uploader interface {
	// Save writes r under a timestamp-prefixed, sanitized form of originalName.
	Save(ctx context.Context, originalName string, r io.Reader) (*Object, error)
}

type Store interface {
	Uploader
	// Open returns utils.ErrNotFound for unknown or unsafe names.
	Open(ctx context.Context, name string) (*ObjectReader, error)
	// Delete removes a stored upload; deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error
}
