package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"carlot/internal/models"
)

// s3API is the subset of *s3.Client used by S3Store.
type s3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configures an S3Store.
type S3Options struct {
	Bucket    string
	Region    string
	Prefix    string
	Endpoint  string
	PathStyle bool
}

// S3Store keeps each object at <prefix><id>/<stored_name>.
type S3Store struct {
	client   s3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Store loads the default AWS credential chain and builds a client.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return newS3Store(client, opts.Bucket, opts.Prefix), nil
}

func newS3Store(client s3API, bucket, prefix string) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}
}

// Write streams r through the upload manager. Failed multipart uploads are
// aborted by the manager, so no object becomes visible.
func (s *S3Store) Write(ctx context.Context, r io.Reader, opts WriteOptions) (models.ObjectRef, error) {
	var zero models.ObjectRef
	if s == nil || s.client == nil {
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

	src := newSourceReader(ctx, r)
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id, storedName)),
		Body:   src,
	})
	if err != nil {
		return zero, src.wrap("write object data", err)
	}
	return models.ObjectRef{
		ID:         id,
		StoredName: storedName,
		SizeBytes:  src.n,
		Bucket:     s.bucket,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (s *S3Store) OpenRead(ctx context.Context, id string) (io.ReadCloser, models.ObjectRef, error) {
	var zero models.ObjectRef
	if s == nil || s.client == nil {
		return nil, zero, fmt.Errorf("object store is not configured")
	}
	ref, err := s.lookup(ctx, id)
	if err != nil {
		return nil, zero, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id, ref.StoredName)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, zero, ErrNotFound
		}
		return nil, zero, fmt.Errorf("get object %s: %w", id, err)
	}
	if out.ContentLength != nil {
		ref.SizeBytes = *out.ContentLength
	}
	return out.Body, ref, nil
}

// Delete reports ErrNotFound itself because S3 deletes of missing keys succeed.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("object store is not configured")
	}
	ref, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id, ref.StoredName)),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, id string) (bool, error) {
	if s == nil || s.client == nil {
		return false, fmt.Errorf("object store is not configured")
	}
	if !ValidID(id) {
		return false, nil
	}
	_, err := s.lookup(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *S3Store) List(ctx context.Context, fn func(models.ObjectRef) error) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("object store is not configured")
	}
	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			ref, ok := s.refFromObject(obj)
			if !ok {
				continue
			}
			if err := fn(ref); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *S3Store) Close(context.Context) error { return nil }

func (s *S3Store) key(id, storedName string) string {
	return s.prefix + id + "/" + storedName
}

// lookup finds the single key under <prefix><id>/.
func (s *S3Store) lookup(ctx context.Context, id string) (models.ObjectRef, error) {
	var zero models.ObjectRef
	if !ValidID(id) {
		return zero, ErrInvalidID
	}
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.prefix + id + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return zero, fmt.Errorf("lookup object %s: %w", id, err)
	}
	for _, obj := range out.Contents {
		if ref, ok := s.refFromObject(obj); ok {
			return ref, nil
		}
	}
	return zero, ErrNotFound
}

func (s *S3Store) refFromObject(obj types.Object) (models.ObjectRef, bool) {
	rest, ok := strings.CutPrefix(aws.ToString(obj.Key), s.prefix)
	if !ok {
		return models.ObjectRef{}, false
	}
	id, storedName, ok := strings.Cut(rest, "/")
	if !ok || !ValidID(id) || storedName == "" || strings.Contains(storedName, "/") {
		return models.ObjectRef{}, false
	}
	return models.ObjectRef{
		ID:         id,
		StoredName: storedName,
		SizeBytes:  aws.ToInt64(obj.Size),
		Bucket:     s.bucket,
		CreatedAt:  aws.ToTime(obj.LastModified).UTC(),
	}, true
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
