package objectstore

import (
	"context"
	"testing"
)

func TestOpenLocalDefault(t *testing.T) {
	store, err := Open(context.Background(), Config{LocalRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close(context.Background())
	local, ok := store.(*LocalStore)
	if !ok {
		t.Fatalf("expected *LocalStore, got %T", store)
	}
	if local.bucket != DefaultBucket {
		t.Fatalf("expected default bucket, got %q", local.bucket)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Config{Backend: "ftp"}); err == nil {
		t.Fatal("expected unknown backend error")
	}
}
