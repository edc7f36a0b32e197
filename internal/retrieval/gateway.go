// Package retrieval resolves object ids to readable streams.
package retrieval

import (
	"context"
	"errors"
	"io"
	"strings"

	"carlot/internal/failure"
	"carlot/internal/metrics"
	"carlot/internal/models"
	"carlot/internal/objectstore"
)

// Object is an open object stream. Callers must close Body.
type Object struct {
	Ref  models.ObjectRef
	Body io.ReadCloser
}

type Gateway struct {
	objects  objectstore.Store
	observer metrics.Observer
}

func NewGateway(objects objectstore.Store, observer metrics.Observer) *Gateway {
	return &Gateway{objects: objects, observer: metrics.OrNoop(observer)}
}

// Fetch opens the object with the given id. Malformed ids are rejected
// without touching the store.
func (g *Gateway) Fetch(ctx context.Context, id string) (*Object, error) {
	id = strings.TrimSpace(id)
	if !objectstore.ValidID(id) {
		g.observer.RecordFetch(metrics.OutcomeRejected)
		return nil, failure.New(failure.Validation, failure.ReasonInvalidObjectID, "invalid object id %q", id)
	}

	exists, err := g.objects.Exists(ctx, id)
	if err != nil {
		g.observer.RecordFetch(metrics.OutcomeError)
		return nil, storeError(err, id)
	}
	if !exists {
		g.observer.RecordFetch(metrics.OutcomeNotFound)
		return nil, noFiles()
	}

	body, ref, err := g.objects.OpenRead(ctx, id)
	if errors.Is(err, objectstore.ErrNotFound) {
		// Deleted between the check and the open.
		g.observer.RecordFetch(metrics.OutcomeNotFound)
		return nil, noFiles()
	}
	if err != nil {
		g.observer.RecordFetch(metrics.OutcomeError)
		return nil, storeError(err, id)
	}
	g.observer.RecordFetch(metrics.OutcomeOK)
	return &Object{Ref: ref, Body: body}, nil
}

func noFiles() error {
	return failure.New(failure.NotFound, failure.ReasonNoFilesExist, "no files exist")
}

func storeError(err error, id string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return failure.Wrap(failure.Store, failure.ReasonStoreFailure, err, "open object %s", id)
}
