package store

import (
	"strings"
	"testing"

	"carlot/internal/models"
)

func TestGenerateID(t *testing.T) {
	t.Run("valid prefix", func(t *testing.T) {
		id, err := GenerateID(vehicleIDPrefix, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(id) != 13 { // "vh-" + 10 chars
			t.Fatalf("expected length 13, got %d: %s", len(id), id)
		}
		if !strings.HasPrefix(id, "vh-") {
			t.Fatalf("expected prefix vh-, got %s", id[:3])
		}
		if !ValidRecordID(id) {
			t.Fatalf("expected generated id %q to validate", id)
		}
	})

	t.Run("empty prefix", func(t *testing.T) {
		_, err := GenerateID("", nil)
		if err == nil {
			t.Fatal("expected error for empty prefix")
		}
	})

	t.Run("retries on collision", func(t *testing.T) {
		calls := 0
		exists := func(id string) (bool, error) {
			calls++
			return calls < 3, nil // first 2 calls collide
		}
		id, err := GenerateID(assetGroupIDPrefix, exists)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id == "" {
			t.Fatal("expected non-empty id")
		}
		if calls != 3 {
			t.Fatalf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		exists := func(id string) (bool, error) {
			return true, nil // always collide
		}
		_, err := GenerateID(vehicleIDPrefix, exists)
		if err == nil {
			t.Fatal("expected error after max attempts")
		}
	})
}

func TestValidRecordID(t *testing.T) {
	cases := map[string]bool{
		"vh-0123456789": true,
		"ag-abcdefghij": true,
		"vh-ABCDEFGHIJ": false,
		"vh-123":        false,
		"xx-0123456789": false,
		"":              false,
		"undefined":     false,
	}
	for id, want := range cases {
		if got := ValidRecordID(id); got != want {
			t.Fatalf("ValidRecordID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestValidRecordIDFor(t *testing.T) {
	if !ValidRecordIDFor(models.RecordVehicle, "vh-0123456789") {
		t.Fatal("expected vehicle id to match vehicle kind")
	}
	if ValidRecordIDFor(models.RecordAsset, "vh-0123456789") {
		t.Fatal("expected vehicle id to be rejected for asset kind")
	}
}
