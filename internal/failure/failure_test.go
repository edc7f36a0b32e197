package failure

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorMessageAndUnwrap(t *testing.T) {
	err := Wrap(Store, ReasonStoreFailure, io.ErrUnexpectedEOF, "write object %s", "abc")
	if got := err.Error(); got != "write object abc: unexpected EOF" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatal("expected cause to be reachable through errors.Is")
	}
}

func TestWrapNilCause(t *testing.T) {
	if err := Wrap(Store, ReasonStoreFailure, nil, "noop"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestKindAndReasonThroughWrapping(t *testing.T) {
	base := New(Validation, ReasonTooManyFiles, "too many files")
	wrapped := fmt.Errorf("accept batch: %w", base)

	if KindOf(wrapped) != Validation {
		t.Fatalf("expected validation, got %s", KindOf(wrapped))
	}
	if ReasonOf(wrapped) != ReasonTooManyFiles {
		t.Fatalf("expected too_many_files, got %q", ReasonOf(wrapped))
	}
	if !Is(wrapped, Validation) || Is(wrapped, NotFound) {
		t.Fatal("Is returned the wrong answer")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("boom")) != Internal {
		t.Fatal("expected internal for unclassified errors")
	}
	if ReasonOf(errors.New("boom")) != "" {
		t.Fatal("expected empty reason for unclassified errors")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		Validation:     "validation",
		NotFound:       "not_found",
		Store:          "store",
		PartialFailure: "partial_failure",
		Conflict:       "conflict",
		Internal:       "internal",
	}
	for kind, want := range cases {
		if kind.String() != want {
			t.Fatalf("kind %d: expected %q, got %q", kind, want, kind.String())
		}
	}
}
