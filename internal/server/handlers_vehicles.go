package server

import (
	"fmt"
	"net/http"

	"carlot/internal/api"
	"carlot/internal/failure"
	"carlot/internal/models"
	"carlot/internal/upload"
)

// multipartSource bounds the request body and opens a lazy part reader. The
// body is never parsed into memory or temp files up front.
func (s *Server) multipartSource(w http.ResponseWriter, r *http.Request) (*upload.MultipartSource, bool) {
	policy := upload.DefaultPolicy()
	if s.pipeline != nil {
		policy = s.pipeline.Policy()
	}
	r.Body = http.MaxBytesReader(w, r.Body, policy.MaxBatchBytes())

	reader, err := r.MultipartReader()
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("multipart/form-data body required: %w", err), ErrCodeMalformedUpload))
		return nil, false
	}
	return upload.NewMultipartSource(reader, s.fieldName), true
}

func (s *Server) handleUploadVehicle(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		src, ok := s.multipartSource(w, r)
		if !ok {
			return
		}

		vehicle, err := s.service.CreateVehicle(r.Context(), src)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		s.log().Info("vehicle created", "vehicle_id", vehicle.ID, "pic_count", len(vehicle.PicIDs))
		s.writeJSON(w, http.StatusCreated, api.UploadResponse{ID: vehicle.ID, PicIDs: vehicle.PicIDs})
	})
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := s.listWindow(w, r)
	if !ok {
		return
	}

	vehicles, err := s.store.ListVehicles(r.Context(), limit, offset)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if vehicles == nil {
		vehicles = []models.Vehicle{}
	}

	s.writeJSON(w, http.StatusOK, vehicles)
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordIDOrBadRequest(w, r, models.RecordVehicle)
	if !ok {
		return
	}

	vehicle, err := s.store.GetVehicle(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if vehicle == nil {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(failure.New(failure.NotFound, failure.ReasonRecordNotFound, "vehicle not found"), ErrCodeRecordNotFound))
		return
	}

	s.writeJSON(w, http.StatusOK, vehicle)
}

func (s *Server) handleReplaceVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordIDOrBadRequest(w, r, models.RecordVehicle)
	if !ok {
		return
	}

	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		src, ok := s.multipartSource(w, r)
		if !ok {
			return
		}

		vehicle, err := s.service.ReplaceVehicle(r.Context(), id, src)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, vehicle)
	})
}

func (s *Server) handleAttachVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordIDOrBadRequest(w, r, models.RecordVehicle)
	if !ok {
		return
	}

	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		src, ok := s.multipartSource(w, r)
		if !ok {
			return
		}

		vehicle, err := s.service.AttachVehicle(r.Context(), id, src)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, vehicle)
	})
}

func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordIDOrBadRequest(w, r, models.RecordVehicle)
	if !ok {
		return
	}

	if err := s.service.DeleteVehicle(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDetachVehicle(w http.ResponseWriter, r *http.Request) {
	var req api.DetachVehicleRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	if err := s.service.Detach(r.Context(), models.VehicleRef(req.VehicleID), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.DetachVehicleResponse{VehicleID: req.VehicleID})
}
