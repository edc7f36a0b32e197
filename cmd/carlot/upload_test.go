package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"carlot/internal/config"
)

func TestParseFieldArgs(t *testing.T) {
	fields, err := parseFieldArgs([]string{"make=Subaru", "price=", " year =2019", "description=a=b"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]string{"make": "Subaru", "price": "", "year": "2019", "description": "a=b"}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"make", "=x"} {
		if _, err := parseFieldArgs([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestOpenUploadFilesClosesOnError(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "front.jpg")
	if err := os.WriteFile(good, []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, _, err := openUploadFiles([]string{good, filepath.Join(dir, "missing.jpg")}); err == nil {
		t.Fatal("expected error for missing file")
	}

	files, closeFiles, err := openUploadFiles([]string{good})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeFiles()
	if len(files) != 1 || files[0].Filename != "front.jpg" || files[0].ContentType != "image/jpeg" {
		t.Fatalf("unexpected upload files %+v", files)
	}
}

func TestRootCommandTree(t *testing.T) {
	cfg := config.Default()
	root := newRootCmd(&cfg)

	for _, path := range [][]string{
		{"srv"},
		{"upload", "vehicle"},
		{"upload", "assets"},
		{"fetch"},
		{"detach"},
		{"vehicles", "list"},
		{"vehicles", "replace"},
		{"assets", "add-pics"},
		{"reconcile"},
		{"config", "list"},
		{"migrate"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd == root {
			t.Fatalf("command %v not registered: %v", path, err)
		}
	}
}
