package upload

import (
	"io"
	"mime/multipart"
	"strings"

	"carlot/internal/failure"
)

const maxFieldBytes = 64 << 10

// MultipartSource reads parts lazily from a multipart stream. File parts
// under fileField become IncomingFiles; plain form fields are collected and
// available from Fields once the source is drained.
type MultipartSource struct {
	reader    *multipart.Reader
	fileField string
	fields    map[string]string
	current   *multipart.Part
}

func NewMultipartSource(reader *multipart.Reader, fileField string) *MultipartSource {
	if strings.TrimSpace(fileField) == "" {
		fileField = DefaultFieldName
	}
	return &MultipartSource{
		reader:    reader,
		fileField: fileField,
		fields:    map[string]string{},
	}
}

func (s *MultipartSource) Next() (IncomingFile, error) {
	if s.current != nil {
		_ = s.current.Close()
		s.current = nil
	}
	for {
		part, err := s.reader.NextPart()
		// A truncated stream surfaces as a wrapped io.EOF; only the bare
		// value marks the closing boundary.
		if err == io.EOF {
			return IncomingFile{}, io.EOF
		}
		if err != nil {
			return IncomingFile{}, err
		}

		name := part.FormName()
		if part.FileName() == "" {
			value, err := readField(part)
			_ = part.Close()
			if err != nil {
				return IncomingFile{}, err
			}
			if name != "" {
				s.fields[name] = value
			}
			continue
		}
		if name != s.fileField {
			_ = part.Close()
			return IncomingFile{}, failure.New(failure.Validation, failure.ReasonMalformedUpload,
				"unexpected file field %q", name)
		}

		s.current = part
		return IncomingFile{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Body:        part,
		}, nil
	}
}

// Fields returns the plain form fields seen so far. Repeated fields keep the
// last value.
func (s *MultipartSource) Fields() map[string]string {
	out := make(map[string]string, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxFieldBytes {
		return "", failure.New(failure.Validation, failure.ReasonMalformedUpload,
			"form field %q exceeds %d bytes", part.FormName(), maxFieldBytes)
	}
	return strings.TrimSpace(string(data)), nil
}

var _ Source = (*MultipartSource)(nil)
