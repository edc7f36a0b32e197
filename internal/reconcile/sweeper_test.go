package reconcile

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"carlot/internal/links"
	"carlot/internal/models"
	"carlot/internal/objectstore"
	"carlot/internal/store"
)

type fixture struct {
	records *store.Store
	objects *objectstore.LocalStore
	sweeper *Sweeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	records, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { records.Close() })
	objects, err := objectstore.NewLocalStore(filepath.Join(dir, "objects"), objectstore.DefaultBucket)
	if err != nil {
		t.Fatalf("open object store: %v", err)
	}
	manager := links.NewManager(records, objects, nil, nil, nil)
	return &fixture{
		records: records,
		objects: objects,
		sweeper: NewSweeper(records, objects, manager, nil, nil),
	}
}

func (f *fixture) write(t *testing.T) string {
	t.Helper()
	ref, err := f.objects.Write(context.Background(), strings.NewReader("img"), objectstore.WriteOptions{Filename: "x.gif"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	return ref.ID
}

func (f *fixture) exists(t *testing.T, id string) bool {
	t.Helper()
	ok, err := f.objects.Exists(context.Background(), id)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	return ok
}

func TestRunDryRunReportsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	linked, orphan := f.write(t), f.write(t)
	ghost := objectstore.NewObjectID()

	vehicle := &models.Vehicle{PicIDs: []string{linked, ghost}}
	if err := f.records.CreateVehicle(ctx, vehicle); err != nil {
		t.Fatalf("create vehicle: %v", err)
	}

	report, err := f.sweeper.Run(ctx, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.DryRun {
		t.Fatal("expected dry run")
	}
	if diff := cmp.Diff([]string{orphan}, report.Orphans); diff != "" {
		t.Fatalf("orphans mismatch (-want +got):\n%s", diff)
	}
	want := []Dangling{{ObjectID: ghost, Records: []models.RecordRef{models.VehicleRef(vehicle.ID)}}}
	if diff := cmp.Diff(want, report.Dangling); diff != "" {
		t.Fatalf("dangling mismatch (-want +got):\n%s", diff)
	}
	if !f.exists(t, orphan) {
		t.Fatal("dry run must not delete")
	}
}

func TestRunApplyRepairs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	linked, orphan := f.write(t), f.write(t)
	ghost := objectstore.NewObjectID()

	group := &models.AssetGroup{Name: "g", PicIDs: []string{ghost, linked}}
	if err := f.records.CreateAssetGroup(ctx, group); err != nil {
		t.Fatalf("create group: %v", err)
	}

	f.sweeper.now = func() time.Time { return time.Now().Add(time.Hour) }
	report, err := f.sweeper.Run(ctx, true)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.DeletedCount != 1 || report.UnlinkedCount != 1 || report.FailedCount != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if f.exists(t, orphan) {
		t.Fatal("expected orphan deleted")
	}
	if !f.exists(t, linked) {
		t.Fatal("linked object must survive")
	}
	ids, _, err := f.records.GetObjectIDs(ctx, models.AssetRef(group.ID))
	if err != nil {
		t.Fatalf("get ids: %v", err)
	}
	if diff := cmp.Diff([]string{linked}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}

	again, err := f.sweeper.Run(ctx, true)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(again.Orphans) != 0 || len(again.Dangling) != 0 {
		t.Fatalf("expected clean second run, got %+v", again)
	}
}

func TestRunApplySkipsRecentOrphans(t *testing.T) {
	f := newFixture(t)
	orphan := f.write(t)

	report, err := f.sweeper.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.SkippedRecent != 1 || report.DeletedCount != 0 {
		t.Fatalf("expected recent orphan skipped, got %+v", report)
	}
	if !f.exists(t, orphan) {
		t.Fatal("recent orphan must survive")
	}

	f.sweeper.SetGracePeriod(0)
	f.sweeper.now = func() time.Time { return time.Now().Add(time.Second) }
	report, err = f.sweeper.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.DeletedCount != 1 {
		t.Fatalf("expected orphan deleted without grace, got %+v", report)
	}
}

// relinkingStore links an orphan right after the reference snapshot is read,
// the way a concurrent replace would.
type relinkingStore struct {
	*store.Store
	relink func()
}

func (r relinkingStore) ListReferencedObjectIDs(ctx context.Context) (map[string][]models.RecordRef, error) {
	refs, err := r.Store.ListReferencedObjectIDs(ctx)
	r.relink()
	return refs, err
}

func TestRunApplyKeepsObjectLinkedMidSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orphan := f.write(t)

	vehicle := &models.Vehicle{}
	if err := f.records.CreateVehicle(ctx, vehicle); err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	rec := models.VehicleRef(vehicle.ID)
	relink := func() {
		_, version, err := f.records.GetObjectIDs(ctx, rec)
		if err != nil {
			t.Errorf("get ids: %v", err)
			return
		}
		if _, err := f.records.SetObjectIDs(ctx, rec, []string{orphan}, version); err != nil {
			t.Errorf("relink: %v", err)
		}
	}

	manager := links.NewManager(f.records, f.objects, nil, nil, nil)
	sweeper := NewSweeper(relinkingStore{Store: f.records, relink: relink}, f.objects, manager, nil, nil)
	sweeper.now = func() time.Time { return time.Now().Add(time.Hour) }

	report, err := sweeper.Run(ctx, true)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Relinked != 1 || report.DeletedCount != 0 {
		t.Fatalf("expected relinked orphan kept, got %+v", report)
	}
	if !f.exists(t, orphan) {
		t.Fatal("object linked during the sweep must survive")
	}
}
