package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// SourceError marks a write that failed because the incoming reader failed
// (or the context ended), not because the backend did.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string { return "read source: " + e.Err.Error() }

func (e *SourceError) Unwrap() error { return e.Err }

// sourceReader counts bytes and remembers the first source failure so every
// backend can report it the same way, whatever its own error wrapping does.
type sourceReader struct {
	ctx context.Context
	r   io.Reader
	n   int64
	err error
}

func newSourceReader(ctx context.Context, r io.Reader) *sourceReader {
	return &sourceReader{ctx: ctx, r: r}
}

func (s *sourceReader) Read(p []byte) (int, error) {
	if err := s.ctx.Err(); err != nil {
		s.fail(err)
		return 0, err
	}
	n, err := s.r.Read(p)
	s.n += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		s.fail(err)
	}
	return n, err
}

func (s *sourceReader) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// wrap annotates a failed write, preferring the source failure as the cause.
func (s *sourceReader) wrap(op string, err error) error {
	if s.err != nil {
		return fmt.Errorf("%s: %w", op, &SourceError{Err: s.err})
	}
	return fmt.Errorf("%s: %w", op, err)
}
