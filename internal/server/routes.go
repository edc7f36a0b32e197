package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Vehicles.
	mux.HandleFunc("POST /vehicles/upload", s.handleUploadVehicle)
	mux.HandleFunc("GET /vehicles", s.handleListVehicles)
	mux.HandleFunc("GET /vehicles/{id}", s.handleGetVehicle)
	mux.HandleFunc("PATCH /vehicles/{id}", s.handleReplaceVehicle)
	mux.HandleFunc("DELETE /vehicles/{id}", s.handleDeleteVehicle)
	mux.HandleFunc("POST /vehicles/{id}/pics", s.handleAttachVehicle)

	// Vehicle pictures.
	mux.HandleFunc("GET /vehicles/pics/{id}", s.handleFetchObject)
	mux.HandleFunc("DELETE /vehicles/pics/{id}", s.handleDetachVehicle)

	// Asset groups.
	mux.HandleFunc("POST /assets/upload", s.handleUploadAssets)
	mux.HandleFunc("GET /assets", s.handleListAssetGroups)
	mux.HandleFunc("GET /assets/{id}", s.handleGetAssetGroup)
	mux.HandleFunc("DELETE /assets/{id}", s.handleDeleteAssetGroup)
	mux.HandleFunc("POST /assets/{id}/pics", s.handleAttachAssets)

	// Asset pictures.
	mux.HandleFunc("GET /assets/pics/{id}", s.handleFetchObject)
	mux.HandleFunc("DELETE /assets/pics/{id}", s.handleDetachAsset)

	// Objects.
	mux.HandleFunc("GET /objects/{id}", s.handleFetchObject)

	// Admin.
	mux.HandleFunc("POST /admin/reconcile", s.handleAdminReconcile)

	return mux
}
