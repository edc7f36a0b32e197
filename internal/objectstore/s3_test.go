package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3Object struct {
	data     []byte
	modified time.Time
}

// fakeS3 is an in-process bucket that only supports single-part uploads.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeS3Object
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]fakeS3Object{}}
}

var errMultipartUnsupported = errors.New("fake s3: multipart upload not supported")

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeS3Object{data: data, modified: time.Now()}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errMultipartUnsupported
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errMultipartUnsupported
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errMultipartUnsupported
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: aws.Int64(int64(len(obj.data))),
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if in.MaxKeys != nil && int(*in.MaxKeys) < len(keys) {
		keys = keys[:*in.MaxKeys]
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		obj := f.objects[key]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modified),
		})
	}
	return out, nil
}

func TestS3StoreContract(t *testing.T) {
	runStoreContract(t, newS3Store(newFakeS3(), "lot", "pics/"))
}

func TestS3StoreKeyLayout(t *testing.T) {
	fake := newFakeS3()
	store := newS3Store(fake, "lot", "pics/")
	ref, err := store.Write(context.Background(), strings.NewReader("abc"), WriteOptions{Filename: "a.GIF"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	want := fmt.Sprintf("pics/%s/%s", ref.ID, ref.StoredName)
	if _, ok := fake.objects[want]; !ok {
		t.Fatalf("expected key %q, have %v", want, fake.objects)
	}
	if ref.Bucket != "lot" {
		t.Fatalf("expected bucket lot, got %q", ref.Bucket)
	}
}

func TestS3StoreListIgnoresForeignKeys(t *testing.T) {
	fake := newFakeS3()
	fake.objects["pics/readme.txt"] = fakeS3Object{data: []byte("x")}
	fake.objects["other/"+NewObjectID()+"/a.png"] = fakeS3Object{data: []byte("x")}
	store := newS3Store(fake, "lot", "pics/")
	if ids := listIDs(t, store); len(ids) != 0 {
		t.Fatalf("expected no objects, got %v", ids)
	}
}

func TestIsS3NotFound(t *testing.T) {
	if !isS3NotFound(&types.NoSuchKey{}) {
		t.Fatal("expected NoSuchKey to be not found")
	}
	if !isS3NotFound(fmt.Errorf("wrapped: %w", &types.NotFound{})) {
		t.Fatal("expected NotFound to be not found")
	}
	if isS3NotFound(errors.New("boom")) {
		t.Fatal("plain error is not a not-found")
	}
}
