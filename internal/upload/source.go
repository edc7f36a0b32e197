package upload

import (
	"errors"
	"io"
)

// IncomingFile is one file of a batch. Body must be consumed before the
// next call to Source.Next.
type IncomingFile struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Source yields the files of a batch one at a time and returns a bare io.EOF
// after the last one.
type Source interface {
	Next() (IncomingFile, error)
}

// ErrFileTooLarge is returned by the reader wrapping a file body once the
// per-file limit is exceeded.
var ErrFileTooLarge = errors.New("file too large")

// cappedReader fails with ErrFileTooLarge as soon as more than limit bytes
// have been read.
type cappedReader struct {
	r         io.Reader
	remaining int64
}

func newCappedReader(r io.Reader, limit int64) *cappedReader {
	return &cappedReader{r: r, remaining: limit}
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, ErrFileTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, ErrFileTooLarge
	}
	return n, err
}

// SliceSource serves a fixed list of files.
type SliceSource struct {
	files []IncomingFile
	next  int
}

func NewSliceSource(files ...IncomingFile) *SliceSource {
	return &SliceSource{files: files}
}

func (s *SliceSource) Next() (IncomingFile, error) {
	if s.next >= len(s.files) {
		return IncomingFile{}, io.EOF
	}
	f := s.files[s.next]
	s.next++
	return f, nil
}
