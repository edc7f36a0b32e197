package objectstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"testing"

	"carlot/internal/models"
)

var errBrokenSource = errors.New("broken source")

// failingReader yields n bytes of data and then fails.
type failingReader struct {
	remaining int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, errBrokenSource
	}
	n := len(p)
	if n > r.remaining {
		n = r.remaining
	}
	for i := range p[:n] {
		p[i] = 'x'
	}
	r.remaining -= n
	return n, nil
}

func listIDs(t *testing.T, store Store) []string {
	t.Helper()
	var ids []string
	err := store.List(context.Background(), func(ref models.ObjectRef) error {
		ids = append(ids, ref.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return ids
}

// runStoreContract exercises behavior every backend must share.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		payload := make([]byte, 300*1024)
		if _, err := rand.Read(payload); err != nil {
			t.Fatalf("rand: %v", err)
		}
		ref, err := store.Write(ctx, bytes.NewReader(payload), WriteOptions{Filename: "Car.JPG"})
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		if !ValidID(ref.ID) {
			t.Fatalf("expected canonical id, got %q", ref.ID)
		}
		if !strings.HasSuffix(ref.StoredName, ".jpg") || len(ref.StoredName) != 36 {
			t.Fatalf("unexpected stored name %q", ref.StoredName)
		}
		if ref.SizeBytes != int64(len(payload)) {
			t.Fatalf("expected size %d, got %d", len(payload), ref.SizeBytes)
		}

		rc, got, err := store.OpenRead(ctx, ref.ID)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !bytes.Equal(data, payload) {
			t.Fatalf("payload mismatch: got %d bytes", len(data))
		}
		if got.ID != ref.ID || got.StoredName != ref.StoredName || got.SizeBytes != ref.SizeBytes {
			t.Fatalf("ref mismatch: wrote %#v, read %#v", ref, got)
		}

		exists, err := store.Exists(ctx, ref.ID)
		if err != nil || !exists {
			t.Fatalf("expected object to exist, exists=%v err=%v", exists, err)
		}

		if err := store.Delete(ctx, ref.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := store.Delete(ctx, ref.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
		if _, _, err := store.OpenRead(ctx, ref.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		exists, err = store.Exists(ctx, ref.ID)
		if err != nil || exists {
			t.Fatalf("expected object to be gone, exists=%v err=%v", exists, err)
		}
	})

	t.Run("empty object", func(t *testing.T) {
		ref, err := store.Write(ctx, bytes.NewReader(nil), WriteOptions{Filename: "empty.png"})
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		t.Cleanup(func() { _ = store.Delete(ctx, ref.ID) })
		if ref.SizeBytes != 0 {
			t.Fatalf("expected zero size, got %d", ref.SizeBytes)
		}
		rc, _, err := store.OpenRead(ctx, ref.ID)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if len(data) != 0 {
			t.Fatalf("expected empty payload, got %d bytes", len(data))
		}
	})

	t.Run("failed write leaves nothing", func(t *testing.T) {
		before := len(listIDs(t, store))
		_, err := store.Write(ctx, &failingReader{remaining: 64 * 1024}, WriteOptions{Filename: "a.gif"})
		if !errors.Is(err, errBrokenSource) {
			t.Fatalf("expected source error to be wrapped, got %v", err)
		}
		var srcErr *SourceError
		if !errors.As(err, &srcErr) {
			t.Fatalf("expected *SourceError, got %T", err)
		}
		if after := len(listIDs(t, store)); after != before {
			t.Fatalf("expected %d listed objects after failed write, got %d", before, after)
		}
	})

	t.Run("unknown and malformed ids", func(t *testing.T) {
		missing := NewObjectID()
		if _, _, err := store.OpenRead(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.Delete(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, _, err := store.OpenRead(ctx, "../../etc/passwd"); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
		exists, err := store.Exists(ctx, "undefined")
		if err != nil || exists {
			t.Fatalf("expected malformed id to not exist, exists=%v err=%v", exists, err)
		}
	})

	t.Run("list", func(t *testing.T) {
		first, err := store.Write(ctx, strings.NewReader("one"), WriteOptions{Filename: "1.png"})
		if err != nil {
			t.Fatalf("write first: %v", err)
		}
		second, err := store.Write(ctx, strings.NewReader("two"), WriteOptions{Filename: "2.png"})
		if err != nil {
			t.Fatalf("write second: %v", err)
		}
		t.Cleanup(func() {
			_ = store.Delete(ctx, first.ID)
			_ = store.Delete(ctx, second.ID)
		})

		seen := map[string]bool{}
		for _, id := range listIDs(t, store) {
			seen[id] = true
		}
		if !seen[first.ID] || !seen[second.ID] {
			t.Fatalf("expected both objects listed, got %v", seen)
		}

		stop := errors.New("stop")
		calls := 0
		err = store.List(ctx, func(models.ObjectRef) error {
			calls++
			return stop
		})
		if !errors.Is(err, stop) || calls != 1 {
			t.Fatalf("expected list to stop after callback error, calls=%d err=%v", calls, err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := store.Write(cctx, strings.NewReader("x"), WriteOptions{}); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
