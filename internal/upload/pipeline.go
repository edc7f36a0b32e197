// Package upload validates incoming file batches and streams them into the
// object store.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"carlot/internal/failure"
	"carlot/internal/metrics"
	"carlot/internal/models"
	"carlot/internal/objectstore"
)

// BatchError reports a failed batch together with the objects that were
// committed before the failure. Those objects are not rolled back.
type BatchError struct {
	Committed []models.ObjectRef
	Err       error
}

func (e *BatchError) Error() string { return e.Err.Error() }

func (e *BatchError) Unwrap() error { return e.Err }

type Pipeline struct {
	store    objectstore.Store
	policy   Policy
	logger   *slog.Logger
	observer metrics.Observer
}

func NewPipeline(store objectstore.Store, policy Policy, logger *slog.Logger, observer metrics.Observer) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:    store,
		policy:   policy.Normalize(),
		logger:   logger,
		observer: metrics.OrNoop(observer),
	}
}

func (p *Pipeline) Policy() Policy { return p.policy }

// Accept drains src, storing each file in arrival order.
func (p *Pipeline) Accept(ctx context.Context, src Source) ([]models.ObjectRef, error) {
	if p == nil || p.store == nil {
		return nil, failure.New(failure.Internal, "", "upload pipeline is not configured")
	}
	if src == nil {
		return nil, failure.New(failure.Internal, "", "upload source is required")
	}

	refs := make([]models.ObjectRef, 0, p.policy.MaxFiles)
	for {
		file, err := src.Next()
		if err == io.EOF {
			return refs, nil
		}
		if err != nil {
			return nil, p.fail(refs, classifySourceError(err))
		}
		if len(refs) >= p.policy.MaxFiles {
			p.observer.RecordUploadFile(metrics.OutcomeRejected, 0)
			return nil, p.fail(refs, failure.New(failure.Validation, failure.ReasonTooManyFiles,
				"too many files: at most %d per upload", p.policy.MaxFiles))
		}

		ref, err := p.storeFile(ctx, file)
		if err != nil {
			return nil, p.fail(refs, err)
		}
		refs = append(refs, ref)
	}
}

func (p *Pipeline) storeFile(ctx context.Context, file IncomingFile) (models.ObjectRef, error) {
	if err := p.policy.checkType(file.Filename, file.ContentType); err != nil {
		p.observer.RecordUploadFile(metrics.OutcomeRejected, 0)
		return models.ObjectRef{}, &failure.Error{
			Kind:    failure.Validation,
			Reason:  failure.ReasonInvalidFileType,
			Message: "image files only",
			Err:     err,
		}
	}
	if file.Body == nil {
		return models.ObjectRef{}, failure.New(failure.Validation, failure.ReasonMalformedUpload, "file %q has no body", file.Filename)
	}

	ref, err := p.store.Write(ctx, newCappedReader(file.Body, p.policy.MaxFileBytes), objectstore.WriteOptions{Filename: file.Filename})
	if err != nil {
		return models.ObjectRef{}, p.classifyWriteError(file.Filename, err)
	}
	p.observer.RecordUploadFile(metrics.OutcomeOK, ref.SizeBytes)
	p.logger.Debug("object stored", "object_id", ref.ID, "stored_name", ref.StoredName, "size_bytes", ref.SizeBytes)
	return ref, nil
}

func (p *Pipeline) classifyWriteError(filename string, err error) error {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		p.observer.RecordUploadFile(metrics.OutcomeRejected, 0)
		return &failure.Error{
			Kind:    failure.Validation,
			Reason:  failure.ReasonFileTooLarge,
			Message: fmt.Sprintf("file too large: limit is %d bytes", p.policy.MaxFileBytes),
			Err:     err,
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		p.observer.RecordUploadFile(metrics.OutcomeError, 0)
		return err
	}

	var srcErr *objectstore.SourceError
	if errors.As(err, &srcErr) {
		p.observer.RecordUploadFile(metrics.OutcomeRejected, 0)
		return classifySourceError(srcErr.Err)
	}
	p.observer.RecordUploadFile(metrics.OutcomeError, 0)
	return failure.Wrap(failure.Store, failure.ReasonStoreFailure, err, "store %q", filename)
}

// fail wraps err with the refs already committed and logs them so they can
// be found by reconciliation.
func (p *Pipeline) fail(committed []models.ObjectRef, err error) error {
	if len(committed) > 0 {
		p.logger.Warn("upload batch failed after committing objects",
			"object_ids", models.ObjectIDs(committed),
			"error", err,
		)
	}
	return &BatchError{Committed: committed, Err: err}
}

func classifySourceError(err error) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return failure.Wrap(failure.Validation, failure.ReasonFileTooLarge, err, "request body too large")
	}
	return failure.Wrap(failure.Validation, failure.ReasonMalformedUpload, err, "read upload")
}
