package models

import (
	"testing"
	"time"
)

func TestRecordRefString(t *testing.T) {
	if got := AssetRef("ag-1").String(); got != "asset:ag-1" {
		t.Fatalf("unexpected ref string %q", got)
	}
}

func TestVehicleApplyFields(t *testing.T) {
	v := Vehicle{Make: "Ford", Model: "F-150"}
	unknown := v.ApplyFields(map[string]string{
		"model":  "Ranger",
		"price":  "24000",
		"colour": "red",
	})
	if v.Make != "Ford" || v.Model != "Ranger" || v.Price != "24000" {
		t.Fatalf("unexpected vehicle after apply: %+v", v)
	}
	if len(unknown) != 1 || unknown[0] != "colour" {
		t.Fatalf("expected colour to be reported unknown, got %v", unknown)
	}
}

func TestObjectIDs(t *testing.T) {
	refs := []ObjectRef{{ID: "a", CreatedAt: time.Now()}, {ID: "b"}}
	ids := ObjectIDs(refs)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids %v", ids)
	}
}
