// Package links maintains the ordered object ids held by owning records.
package links

import (
	"context"
	"errors"
	"log/slog"

	"carlot/internal/failure"
	"carlot/internal/metrics"
	"carlot/internal/models"
	"carlot/internal/objectstore"
	"carlot/internal/store"
)

const DefaultMaxRetries = 5

// Manager applies Attach, Detach and Replace to one record at a time. Writes
// hold the record's lock and are also checked against the record version.
type Manager struct {
	records    store.LinkStore
	objects    objectstore.Store
	locker     Locker
	logger     *slog.Logger
	observer   metrics.Observer
	maxRetries int
}

func NewManager(records store.LinkStore, objects objectstore.Store, locker Locker, logger *slog.Logger, observer metrics.Observer) *Manager {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		records:    records,
		objects:    objects,
		locker:     locker,
		logger:     logger,
		observer:   metrics.OrNoop(observer),
		maxRetries: DefaultMaxRetries,
	}
}

// Attach appends newIDs to the record in order and returns the resulting list.
func (m *Manager) Attach(ctx context.Context, rec models.RecordRef, newIDs []string) ([]string, error) {
	if err := validateRecord(rec); err != nil {
		return nil, err
	}
	if err := validateObjectIDs(newIDs); err != nil {
		return nil, err
	}
	return m.update(ctx, rec, func(current []string) ([]string, error) {
		next := append(append([]string{}, current...), newIDs...)
		if err := checkDuplicates(next); err != nil {
			return nil, err
		}
		return next, nil
	})
}

// Replace sets the record's list to retained followed by newIDs. retained is
// taken as given; it is not checked against the current list.
func (m *Manager) Replace(ctx context.Context, rec models.RecordRef, retained, newIDs []string) ([]string, error) {
	if err := validateRecord(rec); err != nil {
		return nil, err
	}
	next := append(append([]string{}, retained...), newIDs...)
	if err := CheckObjectIDs(next); err != nil {
		return nil, err
	}
	return m.update(ctx, rec, func([]string) ([]string, error) {
		return next, nil
	})
}

// Detach removes objectID from the record and then deletes the object.
// The record is written first, so a failed delete leaves an orphan object
// rather than a dangling reference.
func (m *Manager) Detach(ctx context.Context, rec models.RecordRef, objectID string) error {
	if err := validateRecord(rec); err != nil {
		m.observer.RecordDetach(metrics.OutcomeRejected)
		return err
	}
	if !objectstore.ValidID(objectID) {
		m.observer.RecordDetach(metrics.OutcomeRejected)
		return failure.New(failure.Validation, failure.ReasonInvalidObjectID, "invalid object id %q", objectID)
	}

	_, err := m.update(ctx, rec, func(current []string) ([]string, error) {
		next := make([]string, 0, len(current))
		found := false
		for _, id := range current {
			if id == objectID {
				found = true
				continue
			}
			next = append(next, id)
		}
		if !found {
			return nil, failure.New(failure.NotFound, failure.ReasonObjectNotLinked, "object %s is not linked to %s", objectID, rec)
		}
		return next, nil
	})
	if err != nil {
		if failure.Is(err, failure.NotFound) {
			m.observer.RecordDetach(metrics.OutcomeNotFound)
		} else {
			m.observer.RecordDetach(metrics.OutcomeError)
		}
		return err
	}

	err = m.objects.Delete(ctx, objectID)
	switch {
	case err == nil:
	case errors.Is(err, objectstore.ErrNotFound):
		m.logger.Debug("detached object already absent", "record", rec.String(), "object_id", objectID)
	default:
		m.logger.Warn("object left orphaned after detach", "record", rec.String(), "object_id", objectID, "error", err)
		m.observer.RecordDetach(metrics.OutcomePartial)
		return failure.Wrap(failure.PartialFailure, failure.ReasonPartialFailure, err,
			"object %s was unlinked from %s but could not be deleted", objectID, rec)
	}
	m.observer.RecordDetach(metrics.OutcomeOK)
	return nil
}

// RemoveReferences drops objectID from the record without touching the object
// store. It reports whether the id was present.
func (m *Manager) RemoveReferences(ctx context.Context, rec models.RecordRef, objectID string) (bool, error) {
	removed := false
	_, err := m.update(ctx, rec, func(current []string) ([]string, error) {
		next := make([]string, 0, len(current))
		for _, id := range current {
			if id == objectID {
				removed = true
				continue
			}
			next = append(next, id)
		}
		return next, nil
	})
	return removed, err
}

func (m *Manager) update(ctx context.Context, rec models.RecordRef, apply func(current []string) ([]string, error)) ([]string, error) {
	unlock, err := m.locker.Lock(ctx, rec.String())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, failure.Wrap(failure.Store, failure.ReasonStoreFailure, err, "lock %s", rec)
	}
	defer unlock()

	for attempt := 0; attempt < m.maxRetries; attempt++ {
		current, version, err := m.records.GetObjectIDs(ctx, rec)
		if err != nil {
			return nil, recordError(rec, err)
		}
		next, err := apply(current)
		if err != nil {
			return nil, err
		}
		_, err = m.records.SetObjectIDs(ctx, rec, next, version)
		if errors.Is(err, store.ErrVersionConflict) {
			m.logger.Debug("record version conflict, retrying", "record", rec.String(), "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, recordError(rec, err)
		}
		return next, nil
	}
	return nil, failure.New(failure.Conflict, failure.ReasonVersionConflict, "%s changed concurrently, try again", rec)
}

func recordError(rec models.RecordRef, err error) error {
	if errors.Is(err, store.ErrRecordNotFound) {
		return failure.Wrap(failure.NotFound, failure.ReasonRecordNotFound, err, "%s", rec)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return failure.Wrap(failure.Store, failure.ReasonStoreFailure, err, "update %s", rec)
}

func validateRecord(rec models.RecordRef) error {
	if !store.ValidRecordIDFor(rec.Kind, rec.ID) {
		return failure.New(failure.Validation, failure.ReasonInvalidRecordID, "invalid %s id %q", rec.Kind, rec.ID)
	}
	return nil
}

// CheckObjectIDs rejects a list holding a malformed or repeated object id.
func CheckObjectIDs(ids []string) error {
	if err := validateObjectIDs(ids); err != nil {
		return err
	}
	return checkDuplicates(ids)
}

func validateObjectIDs(ids []string) error {
	for _, id := range ids {
		if !objectstore.ValidID(id) {
			return failure.New(failure.Validation, failure.ReasonInvalidObjectID, "invalid object id %q", id)
		}
	}
	return nil
}

func checkDuplicates(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return failure.New(failure.Validation, failure.ReasonDuplicateObjectID, "object %s is already linked", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
