// Package objectstore persists immutable binary objects keyed by an opaque id.
package objectstore

import (
	"context"
	"errors"
	"io"

	"carlot/internal/models"
)

var (
	// ErrNotFound is returned when no committed object has the requested id.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidID is returned for ids that are not canonical object ids.
	ErrInvalidID = errors.New("invalid object id")
)

// WriteOptions carries per-write hints. Filename only contributes its extension.
type WriteOptions struct {
	Filename string
}

// Store is the byte-storage abstraction shared by upload, link and retrieval.
//
// Write returns only after the object is durably committed; a failed write
// leaves nothing visible to OpenRead, Exists or List.
type Store interface {
	Write(ctx context.Context, r io.Reader, opts WriteOptions) (models.ObjectRef, error)
	OpenRead(ctx context.Context, id string) (io.ReadCloser, models.ObjectRef, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, fn func(models.ObjectRef) error) error
	Close(ctx context.Context) error
}
