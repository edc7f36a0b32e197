package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

type seenPart struct {
	Field, Filename, ContentType, Body string
}

func TestUploadSendsFieldsAndTypedParts(t *testing.T) {
	var parts []seenPart
	fields := map[string]string{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/vehicles/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		reader, err := r.MultipartReader()
		if err != nil {
			t.Errorf("multipart reader: %v", err)
			return
		}
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Errorf("next part: %v", err)
				return
			}
			data, _ := io.ReadAll(part)
			if part.FileName() == "" {
				fields[part.FormName()] = string(data)
				continue
			}
			parts = append(parts, seenPart{part.FormName(), part.FileName(), part.Header.Get("Content-Type"), string(data)})
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(UploadResponse{ID: "vh-abc", PicIDs: []string{"p1"}})
	}))
	defer ts.Close()

	client := NewClient(ts.URL + "/")
	resp, err := client.UploadVehicle(context.Background(), map[string]string{"make": "Volvo"}, []UploadFile{
		{Filename: "a.png", ContentType: "image/png", Body: strings.NewReader("png")},
		{Filename: "b.bin", Body: strings.NewReader("raw")},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.ID != "vh-abc" {
		t.Fatalf("unexpected response %+v", resp)
	}

	want := []seenPart{
		{defaultFileField, "a.png", "image/png", "png"},
		{defaultFileField, "b.bin", "application/octet-stream", "raw"},
	}
	if diff := cmp.Diff(want, parts); diff != "" {
		t.Fatalf("parts mismatch (-want +got):\n%s", diff)
	}
	if fields["make"] != "Volvo" {
		t.Fatalf("expected make field, got %v", fields)
	}
}

func TestDetachSendsJSONBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/vehicles/pics/obj-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req DetachVehicleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(DetachVehicleResponse{VehicleID: req.VehicleID})
	}))
	defer ts.Close()

	resp, err := NewClient(ts.URL).DetachVehiclePic(context.Background(), "obj-1", "vh-0123456789")
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if resp.VehicleID != "vh-0123456789" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestDecodeErrorCarriesReason(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "no files exist", Code: "not_found", ErrorCode: 2002, Reason: "no_files_exist"})
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).Fetch(context.Background(), "3f1c2f4e-8a51-4d0c-9a55-5d3f0f4c8e21", io.Discard)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Reason != "no_files_exist" || apiErr.ErrorCode != 2002 {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if apiErr.Error() != "not_found: no files exist" {
		t.Fatalf("unexpected message %q", apiErr.Error())
	}
}

func TestDecodeErrorWithoutJSONBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	err := NewClient(ts.URL).Ping(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 APIError, got %v", err)
	}
}

func TestAPIErrorHelpers(t *testing.T) {
	err := &APIError{Status: http.StatusTooManyRequests, Code: "resource_exhausted", Message: "busy"}
	if !err.Retryable() {
		t.Fatal("429 should be retryable")
	}
	if err.HasReason("too_many_files") {
		t.Fatal("error without reason should not match")
	}

	partial := &APIError{Status: http.StatusBadGateway, Code: "partial_failure", Reason: "partial_failure", Message: "delete failed"}
	if partial.Retryable() {
		t.Fatal("partial failure should not be retryable")
	}
	if !partial.HasReason("object_not_linked", "partial_failure") {
		t.Fatal("expected reason match")
	}

	var nilErr *APIError
	if nilErr.HasReason("x") || nilErr.Retryable() || nilErr.Error() != "" {
		t.Fatal("nil error helpers should be inert")
	}
}

func TestDetachRequestsAcceptCamelCase(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"vehicle_id":"vh-1"}`, "vh-1"},
		{`{"vehicleId":"vh-2"}`, "vh-2"},
		{`{"vehicle_id":"vh-3","vehicleId":"vh-4"}`, "vh-3"},
		{`{}`, ""},
	}
	for _, tc := range cases {
		var req DetachVehicleRequest
		if err := json.Unmarshal([]byte(tc.body), &req); err != nil {
			t.Fatalf("decode %s: %v", tc.body, err)
		}
		if req.VehicleID != tc.want {
			t.Fatalf("decode %s: got %q, want %q", tc.body, req.VehicleID, tc.want)
		}
	}

	var asset DetachAssetRequest
	if err := json.Unmarshal([]byte(`{"assetId":"ag-1"}`), &asset); err != nil {
		t.Fatalf("decode asset: %v", err)
	}
	if asset.AssetID != "ag-1" {
		t.Fatalf("got %q", asset.AssetID)
	}

	encoded, err := json.Marshal(DetachVehicleRequest{VehicleID: "vh-5"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(encoded) != `{"vehicle_id":"vh-5"}` {
		t.Fatalf("unexpected encoding %s", encoded)
	}
}
