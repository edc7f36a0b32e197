package server

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"carlot/internal/failure"
	"carlot/internal/objectstore"
)

func TestSplitRetainedIDs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: []string{}},
		{name: "empty json", raw: "[]", want: []string{}},
		{name: "json", raw: `["a", " b "]`, want: []string{"a", "b"}},
		{name: "csv", raw: "a, b,,c", want: []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitRetainedIDs(tt.raw)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRetainedIDsRejectsBadJSON(t *testing.T) {
	_, err := parseRetainedIDs(`["a",`)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := httpStatusFromError(err); got != 400 {
		t.Fatalf("expected 400, got %d", got)
	}
	if errorReason(err) != failure.ReasonMalformedUpload {
		t.Fatalf("unexpected reason %q", errorReason(err))
	}
	if errorNumericCode(400, err) != ErrCodeInvalidRetention {
		t.Fatalf("unexpected error code %d", errorNumericCode(400, err))
	}
}

func TestParseRetainedIDsRejectsBadIDs(t *testing.T) {
	id := objectstore.NewObjectID()
	tests := map[string]struct {
		raw    string
		reason string
	}{
		"not a uuid":  {raw: `["abc"]`, reason: failure.ReasonInvalidObjectID},
		"upper case":  {raw: strings.ToUpper(id), reason: failure.ReasonInvalidObjectID},
		"duplicate":   {raw: id + "," + id, reason: failure.ReasonDuplicateObjectID},
		"broken json": {raw: "[not json", reason: failure.ReasonMalformedUpload},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseRetainedIDs(tt.raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := httpStatusFromError(classifyError(err)); got != 400 {
				t.Fatalf("expected 400, got %d", got)
			}
			if errorReason(err) != tt.reason {
				t.Fatalf("expected reason %q, got %q", tt.reason, errorReason(err))
			}
		})
	}

	got, err := parseRetainedIDs(`["` + id + `"]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff([]string{id}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownKeys(t *testing.T) {
	got := unknownKeys(map[string]string{"name": "x", "zeta": "1", "alpha": "2"}, "name")
	if diff := cmp.Diff([]string{"alpha", "zeta"}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
