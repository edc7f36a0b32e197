package objectstore

import (
	"strings"
	"testing"
)

func TestValidID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{NewObjectID(), true},
		{"6f1c1f2e-8a3b-4c1d-9e2f-0a1b2c3d4e5f", true},
		{"6F1C1F2E-8A3B-4C1D-9E2F-0A1B2C3D4E5F", false},
		{strings.ToUpper(NewObjectID()), false},
		{"", false},
		{"undefined", false},
		{"6f1c1f2e8a3b4c1d9e2f0a1b2c3d4e5f", false},
		{"{6f1c1f2e-8a3b-4c1d-9e2f-0a1b2c3d4e5f}", false},
		{"zz1c1f2e-8a3b-4c1d-9e2f-0a1b2c3d4e5f", false},
		{"64b7f0c2a1e3d4b5c6a7e8f9", false},
	}
	for _, tc := range cases {
		if got := ValidID(tc.id); got != tc.want {
			t.Fatalf("ValidID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestNewStoredName(t *testing.T) {
	cases := map[string]string{
		"photo.JPG":              ".jpg",
		"a.b.png":                ".png",
		"noext":                  "",
		"weird.p/ng":             "",
		"dot.":                   "",
		"space.jp g":             "",
		"long.abcdefghijklmnopq": "",
	}
	for filename, ext := range cases {
		name, err := NewStoredName(filename)
		if err != nil {
			t.Fatalf("stored name for %q: %v", filename, err)
		}
		if !strings.HasSuffix(name, ext) || len(name) != 32+len(ext) {
			t.Fatalf("stored name for %q: got %q, want 32 hex + %q", filename, name, ext)
		}
	}

	a, _ := NewStoredName("x.png")
	b, _ := NewStoredName("x.png")
	if a == b {
		t.Fatalf("expected distinct stored names, both %q", a)
	}
}
