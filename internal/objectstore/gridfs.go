package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"carlot/internal/models"
)

const DefaultBucket = "pics"

// GridFSStore stores objects in a MongoDB GridFS bucket. The object id is the
// GridFS file _id and the stored name is its filename.
type GridFSStore struct {
	client *mongo.Client
	bucket *gridfs.Bucket
	name   string
}

type gridfsFile struct {
	ID         any       `bson:"_id"`
	Length     int64     `bson:"length"`
	UploadDate time.Time `bson:"uploadDate"`
	Filename   string    `bson:"filename"`
}

// NewGridFSStore connects to uri and opens bucket in database.
func NewGridFSStore(ctx context.Context, uri, database, bucket string) (*GridFSStore, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if strings.TrimSpace(database) == "" {
		return nil, fmt.Errorf("mongo database is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	store, err := newGridFSStore(client, client.Database(database), bucket)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

func newGridFSStore(client *mongo.Client, db *mongo.Database, name string) (*GridFSStore, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultBucket
	}
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(name))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket %s: %w", name, err)
	}
	return &GridFSStore{client: client, bucket: bucket, name: name}, nil
}

// Write streams r into an upload stream. Any failure aborts the stream, which
// removes the chunks written so far; the files document only appears on Close.
func (s *GridFSStore) Write(ctx context.Context, r io.Reader, opts WriteOptions) (models.ObjectRef, error) {
	var zero models.ObjectRef
	if s == nil || s.bucket == nil {
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

	stream, err := s.bucket.OpenUploadStreamWithID(id, storedName)
	if err != nil {
		return zero, fmt.Errorf("open upload stream: %w", err)
	}
	src := newSourceReader(ctx, r)
	if _, err := io.Copy(stream, src); err != nil {
		_ = stream.Abort()
		return zero, src.wrap("write object data", err)
	}
	if err := stream.Close(); err != nil {
		_ = s.bucket.DeleteContext(context.WithoutCancel(ctx), id)
		return zero, fmt.Errorf("commit object %s: %w", id, err)
	}

	return models.ObjectRef{
		ID:         id,
		StoredName: storedName,
		SizeBytes:  src.n,
		Bucket:     s.name,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (s *GridFSStore) OpenRead(ctx context.Context, id string) (io.ReadCloser, models.ObjectRef, error) {
	var zero models.ObjectRef
	if s == nil || s.bucket == nil {
		return nil, zero, fmt.Errorf("object store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, zero, err
	}
	if !ValidID(id) {
		return nil, zero, ErrInvalidID
	}
	stream, err := s.bucket.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, zero, ErrNotFound
		}
		return nil, zero, fmt.Errorf("open download stream %s: %w", id, err)
	}
	file := stream.GetFile()
	ref := models.ObjectRef{
		ID:         id,
		StoredName: file.Name,
		SizeBytes:  file.Length,
		Bucket:     s.name,
		CreatedAt:  file.UploadDate.UTC(),
	}
	return stream, ref, nil
}

// Delete removes the files document and every chunk of id.
func (s *GridFSStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.bucket == nil {
		return fmt.Errorf("object store is not configured")
	}
	if !ValidID(id) {
		return ErrInvalidID
	}
	if err := s.bucket.DeleteContext(ctx, id); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}

func (s *GridFSStore) Exists(ctx context.Context, id string) (bool, error) {
	if s == nil || s.bucket == nil {
		return false, fmt.Errorf("object store is not configured")
	}
	if !ValidID(id) {
		return false, nil
	}
	n, err := s.bucket.GetFilesCollection().CountDocuments(ctx, bson.D{{Key: "_id", Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count object %s: %w", id, err)
	}
	return n > 0, nil
}

// List walks the files collection. Files whose _id is not an object id were
// not written by this store and are skipped.
func (s *GridFSStore) List(ctx context.Context, fn func(models.ObjectRef) error) error {
	if s == nil || s.bucket == nil {
		return fmt.Errorf("object store is not configured")
	}
	cursor, err := s.bucket.FindContext(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var file gridfsFile
		if err := cursor.Decode(&file); err != nil {
			return fmt.Errorf("decode files document: %w", err)
		}
		id, ok := file.ID.(string)
		if !ok || !ValidID(id) {
			continue
		}
		ref := models.ObjectRef{
			ID:         id,
			StoredName: file.Filename,
			SizeBytes:  file.Length,
			Bucket:     s.name,
			CreatedAt:  file.UploadDate.UTC(),
		}
		if err := fn(ref); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (s *GridFSStore) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
