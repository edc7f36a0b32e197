package server

import (
	"net/http"

	"carlot/internal/api"
	"carlot/internal/failure"
	"carlot/internal/models"
	"carlot/internal/objectstore"
)

func (s *Server) handleUploadAssets(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		src, ok := s.multipartSource(w, r)
		if !ok {
			return
		}

		group, err := s.service.CreateAssetGroup(r.Context(), src)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		s.log().Info("asset group created", "asset_id", group.ID, "pic_count", len(group.PicIDs))
		s.writeJSON(w, http.StatusCreated, api.UploadResponse{ID: group.ID, PicIDs: group.PicIDs})
	})
}

func (s *Server) handleListAssetGroups(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := s.listWindow(w, r)
	if !ok {
		return
	}

	groups, err := s.store.ListAssetGroups(r.Context(), limit, offset)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if groups == nil {
		groups = []models.AssetGroup{}
	}

	s.writeJSON(w, http.StatusOK, groups)
}

// handleGetAssetGroup reads an asset group by record id. An object id on the
// same path streams that object instead.
func (s *Server) handleGetAssetGroup(w http.ResponseWriter, r *http.Request) {
	if objectstore.ValidID(r.PathValue("id")) {
		s.handleFetchObject(w, r)
		return
	}

	id, ok := s.recordIDOrBadRequest(w, r, models.RecordAsset)
	if !ok {
		return
	}

	group, err := s.store.GetAssetGroup(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if group == nil {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(failure.New(failure.NotFound, failure.ReasonRecordNotFound, "asset group not found"), ErrCodeRecordNotFound))
		return
	}

	s.writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleAttachAssets(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordIDOrBadRequest(w, r, models.RecordAsset)
	if !ok {
		return
	}

	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		src, ok := s.multipartSource(w, r)
		if !ok {
			return
		}

		group, err := s.service.AttachAssetGroup(r.Context(), id, src)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, group)
	})
}

func (s *Server) handleDeleteAssetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recordIDOrBadRequest(w, r, models.RecordAsset)
	if !ok {
		return
	}

	if err := s.service.DeleteAssetGroup(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDetachAsset(w http.ResponseWriter, r *http.Request) {
	var req api.DetachAssetRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	if err := s.service.Detach(r.Context(), models.AssetRef(req.AssetID), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.DetachAssetResponse{AssetID: req.AssetID})
}
