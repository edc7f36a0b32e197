package api

import (
	"encoding/json"

	"carlot/internal/reconcile"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// UploadResponse is returned when an upload creates a record.
type UploadResponse struct {
	ID     string   `json:"id"`
	PicIDs []string `json:"pic_ids"`
}

type DetachVehicleRequest struct {
	VehicleID string `json:"vehicle_id"`
}

// UnmarshalJSON also accepts the camelCase vehicleId sent by older clients.
func (r *DetachVehicleRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		VehicleID string `json:"vehicle_id"`
		CamelID   string `json:"vehicleId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.VehicleID = firstNonEmpty(raw.VehicleID, raw.CamelID)
	return nil
}

type DetachVehicleResponse struct {
	VehicleID string `json:"vehicle_id"`
}

type DetachAssetRequest struct {
	AssetID string `json:"asset_id"`
}

// UnmarshalJSON also accepts the camelCase assetId.
func (r *DetachAssetRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		AssetID string `json:"asset_id"`
		CamelID string `json:"assetId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.AssetID = firstNonEmpty(raw.AssetID, raw.CamelID)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type DetachAssetResponse struct {
	AssetID string `json:"asset_id"`
}

// ReconcileResponse reports one reconciliation sweep.
type ReconcileResponse = reconcile.Report
