package upload

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"carlot/internal/failure"
)

type formPart struct {
	field       string
	filename    string
	contentType string
	body        string
}

func buildMultipart(t *testing.T, parts []formPart) *multipart.Reader {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, part := range parts {
		if part.filename == "" {
			if err := writer.WriteField(part.field, part.body); err != nil {
				t.Fatalf("write field: %v", err)
			}
			continue
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+part.field+`"; filename="`+part.filename+`"`)
		header.Set("Content-Type", part.contentType)
		w, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := io.WriteString(w, part.body); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return multipart.NewReader(&body, writer.Boundary())
}

func TestMultipartSourceFilesAndFields(t *testing.T) {
	reader := buildMultipart(t, []formPart{
		{field: "make", body: " Ford "},
		{field: DefaultFieldName, filename: "front.jpg", contentType: "image/jpeg", body: "front"},
		{field: DefaultFieldName, filename: "back.png", contentType: "image/png", body: "back"},
		{field: "model", body: "Ranger"},
	})
	store := testLocalStore(t)
	src := NewMultipartSource(reader, "")
	refs, err := NewPipeline(store, DefaultPolicy(), nil, nil).Accept(context.Background(), src)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].SizeBytes != int64(len("front")) || refs[1].SizeBytes != int64(len("back")) {
		t.Fatalf("unexpected sizes %d %d", refs[0].SizeBytes, refs[1].SizeBytes)
	}

	fields := src.Fields()
	if fields["make"] != "Ford" || fields["model"] != "Ranger" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestMultipartSourceUnexpectedFileField(t *testing.T) {
	reader := buildMultipart(t, []formPart{
		{field: "photo", filename: "x.jpg", contentType: "image/jpeg", body: "x"},
	})
	_, err := NewMultipartSource(reader, DefaultFieldName).Next()
	if failure.ReasonOf(err) != failure.ReasonMalformedUpload {
		t.Fatalf("expected malformed_upload, got %v", err)
	}
}

func TestMultipartSourceUnreadBodyIsSkipped(t *testing.T) {
	reader := buildMultipart(t, []formPart{
		{field: DefaultFieldName, filename: "a.jpg", contentType: "image/jpeg", body: strings.Repeat("a", 4096)},
		{field: DefaultFieldName, filename: "b.jpg", contentType: "image/jpeg", body: "b"},
	})
	src := NewMultipartSource(reader, DefaultFieldName)
	if _, err := src.Next(); err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := src.Next()
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	data, _ := io.ReadAll(second.Body)
	if second.Filename != "b.jpg" || string(data) != "b" {
		t.Fatalf("unexpected second file %q %q", second.Filename, string(data))
	}
	if _, err := src.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestMultipartSourceOversizedField(t *testing.T) {
	reader := buildMultipart(t, []formPart{
		{field: "description", body: strings.Repeat("d", maxFieldBytes+1)},
	})
	_, err := NewMultipartSource(reader, DefaultFieldName).Next()
	if failure.ReasonOf(err) != failure.ReasonMalformedUpload {
		t.Fatalf("expected malformed_upload, got %v", err)
	}
}

func TestMultipartSourceMalformedStream(t *testing.T) {
	reader := multipart.NewReader(strings.NewReader("not a multipart body"), "boundary")
	_, err := NewPipeline(&discardStore{}, DefaultPolicy(), nil, nil).Accept(context.Background(), NewMultipartSource(reader, ""))
	if failure.KindOf(err) != failure.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
