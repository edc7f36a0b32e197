package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"carlot/internal/models"
)

const (
	localObjectsDir = "objects"
	localTmpDir     = "tmp"
	localRefFile    = "ref.json"
)

// LocalStore keeps each object in its own directory under root:
//
//	objects/<id[0:2]>/<id>/<stored_name>
//	objects/<id[0:2]>/<id>/ref.json
//
// Objects are assembled under tmp/ and renamed into place once complete.
type LocalStore struct {
	root   string
	bucket string
}

// NewLocalStore creates a local store rooted at root. bucket is recorded on
// every ObjectRef.
func NewLocalStore(root, bucket string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local object root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{localObjectsDir, localTmpDir} {
		if err := os.MkdirAll(filepath.Join(abs, dir), 0o755); err != nil {
			return nil, err
		}
	}
	return &LocalStore{root: abs, bucket: bucket}, nil
}

// Write streams r into a temp directory and commits it with a rename.
func (s *LocalStore) Write(ctx context.Context, r io.Reader, opts WriteOptions) (models.ObjectRef, error) {
	var zero models.ObjectRef
	if s == nil {
		return zero, fmt.Errorf("object store is not configured")
	}
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	storedName, err := NewStoredName(opts.Filename)
	if err != nil {
		return zero, err
	}
	id := NewObjectID()

	tmpDir, err := os.MkdirTemp(filepath.Join(s.root, localTmpDir), "write-*")
	if err != nil {
		return zero, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	f, err := os.OpenFile(filepath.Join(tmpDir, storedName), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		cleanup()
		return zero, err
	}
	src := newSourceReader(ctx, r)
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		cleanup()
		return zero, src.wrap("write object data", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		cleanup()
		return zero, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return zero, err
	}

	ref := models.ObjectRef{
		ID:         id,
		StoredName: storedName,
		SizeBytes:  src.n,
		Bucket:     s.bucket,
		CreatedAt:  time.Now().UTC(),
	}
	meta, err := json.Marshal(ref)
	if err != nil {
		cleanup()
		return zero, err
	}
	if err := os.WriteFile(filepath.Join(tmpDir, localRefFile), meta, 0o644); err != nil {
		cleanup()
		return zero, err
	}

	dst := s.objectDir(id)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		cleanup()
		return zero, err
	}
	if err := os.Rename(tmpDir, dst); err != nil {
		cleanup()
		return zero, fmt.Errorf("commit object %s: %w", id, err)
	}
	return ref, nil
}

// OpenRead opens the data file of a committed object.
func (s *LocalStore) OpenRead(ctx context.Context, id string) (io.ReadCloser, models.ObjectRef, error) {
	var zero models.ObjectRef
	if s == nil {
		return nil, zero, fmt.Errorf("object store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, zero, err
	}
	ref, err := s.readRef(id)
	if err != nil {
		return nil, zero, err
	}
	f, err := os.Open(filepath.Join(s.objectDir(id), ref.StoredName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, zero, ErrNotFound
		}
		return nil, zero, err
	}
	return f, ref, nil
}

// Delete moves the object out of the tree before removing its files, so a
// partially deleted object is never visible.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("object store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidID(id) {
		return ErrInvalidID
	}
	trash, err := os.MkdirTemp(filepath.Join(s.root, localTmpDir), "delete-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(trash)

	if err := os.Rename(s.objectDir(id), filepath.Join(trash, id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}

func (s *LocalStore) Exists(ctx context.Context, id string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("object store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !ValidID(id) {
		return false, nil
	}
	_, err := os.Stat(filepath.Join(s.objectDir(id), localRefFile))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// List calls fn for every committed object. Directories without a readable
// ref.json are skipped.
func (s *LocalStore) List(ctx context.Context, fn func(models.ObjectRef) error) error {
	if s == nil {
		return fmt.Errorf("object store is not configured")
	}
	shards, err := os.ReadDir(filepath.Join(s.root, localObjectsDir))
	if err != nil {
		return err
	}
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.root, localObjectsDir, shard.Name()))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !entry.IsDir() || !ValidID(entry.Name()) {
				continue
			}
			ref, err := s.readRef(entry.Name())
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			if err := fn(ref); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *LocalStore) Close(context.Context) error { return nil }

func (s *LocalStore) objectDir(id string) string {
	return filepath.Join(s.root, localObjectsDir, id[0:2], id)
}

func (s *LocalStore) readRef(id string) (models.ObjectRef, error) {
	var ref models.ObjectRef
	if !ValidID(id) {
		return ref, ErrInvalidID
	}
	data, err := os.ReadFile(filepath.Join(s.objectDir(id), localRefFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ref, ErrNotFound
		}
		return ref, err
	}
	if err := json.Unmarshal(data, &ref); err != nil {
		return ref, fmt.Errorf("decode object ref %s: %w", id, err)
	}
	return ref, nil
}
