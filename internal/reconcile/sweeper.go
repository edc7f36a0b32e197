// Package reconcile finds and repairs disagreements between record link lists
// and the object store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"carlot/internal/metrics"
	"carlot/internal/models"
	"carlot/internal/objectstore"
	"carlot/internal/store"
)

// DefaultGracePeriod keeps in-flight uploads, which are stored before they are
// linked, from being swept.
const DefaultGracePeriod = 10 * time.Minute

// ReferenceRemover drops an object id from one record's list.
type ReferenceRemover interface {
	RemoveReferences(ctx context.Context, rec models.RecordRef, objectID string) (bool, error)
}

// Dangling is a referenced object id with no stored object.
type Dangling struct {
	ObjectID string             `json:"object_id"`
	Records  []models.RecordRef `json:"records"`
}

// Report describes one sweep.
type Report struct {
	Orphans       []string   `json:"orphans"`
	OrphanBytes   int64      `json:"orphan_bytes"`
	Dangling      []Dangling `json:"dangling"`
	DeletedCount  int        `json:"deleted_count"`
	SkippedRecent int        `json:"skipped_recent"`
	Relinked      int        `json:"relinked"`
	UnlinkedCount int        `json:"unlinked_count"`
	FailedCount   int        `json:"failed_count"`
	DryRun        bool       `json:"dry_run"`
}

type Sweeper struct {
	records  store.LinkStore
	objects  objectstore.Store
	remover  ReferenceRemover
	logger   *slog.Logger
	observer metrics.Observer
	grace    time.Duration
	now      func() time.Time
}

func NewSweeper(records store.LinkStore, objects objectstore.Store, remover ReferenceRemover, logger *slog.Logger, observer metrics.Observer) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		records:  records,
		objects:  objects,
		remover:  remover,
		logger:   logger,
		observer: metrics.OrNoop(observer),
		grace:    DefaultGracePeriod,
		now:      time.Now,
	}
}

// SetGracePeriod overrides how old an orphan must be before it is deleted.
func (s *Sweeper) SetGracePeriod(grace time.Duration) {
	if grace >= 0 {
		s.grace = grace
	}
}

// Run compares references with stored objects. With apply it deletes orphans
// older than the grace period and unlinks dangling references.
func (s *Sweeper) Run(ctx context.Context, apply bool) (Report, error) {
	report := Report{DryRun: !apply, Orphans: []string{}, Dangling: []Dangling{}}

	// References are read before listing objects: an object stored and linked
	// in between then shows up as a recent orphan, never as dangling.
	referenced, err := s.records.ListReferencedObjectIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list references: %w", err)
	}

	stored := map[string]struct{}{}
	var orphans []models.ObjectRef
	err = s.objects.List(ctx, func(ref models.ObjectRef) error {
		stored[ref.ID] = struct{}{}
		if _, ok := referenced[ref.ID]; !ok {
			orphans = append(orphans, ref)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("list objects: %w", err)
	}

	sort.Slice(orphans, func(i, j int) bool { return orphans[i].ID < orphans[j].ID })
	for _, ref := range orphans {
		report.Orphans = append(report.Orphans, ref.ID)
		report.OrphanBytes += ref.SizeBytes
	}
	for id, owners := range referenced {
		if _, ok := stored[id]; !ok {
			report.Dangling = append(report.Dangling, Dangling{ObjectID: id, Records: owners})
		}
	}
	sort.Slice(report.Dangling, func(i, j int) bool { return report.Dangling[i].ObjectID < report.Dangling[j].ObjectID })
	s.observer.RecordReconcileOrphans(len(orphans))

	if !apply {
		return report, nil
	}

	cutoff := s.now().Add(-s.grace)
	for _, ref := range orphans {
		if ref.CreatedAt.After(cutoff) {
			report.SkippedRecent++
			continue
		}
		// A replace may have linked the object since the snapshot was taken.
		linked, err := s.records.IsObjectReferenced(ctx, ref.ID)
		if err != nil {
			s.logger.Warn("recheck orphan object", "object_id", ref.ID, "error", err)
			report.FailedCount++
			continue
		}
		if linked {
			report.Relinked++
			continue
		}
		err = s.objects.Delete(ctx, ref.ID)
		if err != nil && !errors.Is(err, objectstore.ErrNotFound) {
			s.logger.Warn("delete orphan object", "object_id", ref.ID, "error", err)
			report.FailedCount++
			continue
		}
		report.DeletedCount++
	}

	for _, d := range report.Dangling {
		for _, rec := range d.Records {
			removed, err := s.remover.RemoveReferences(ctx, rec, d.ObjectID)
			if err != nil {
				s.logger.Warn("unlink dangling reference", "record", rec.String(), "object_id", d.ObjectID, "error", err)
				report.FailedCount++
				continue
			}
			if removed {
				report.UnlinkedCount++
			}
		}
	}

	s.logger.Info("reconcile applied",
		"orphans", len(report.Orphans),
		"deleted", report.DeletedCount,
		"skipped_recent", report.SkippedRecent,
		"relinked", report.Relinked,
		"dangling", len(report.Dangling),
		"unlinked", report.UnlinkedCount,
		"failed", report.FailedCount,
	)
	return report, ctx.Err()
}
