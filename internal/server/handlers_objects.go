package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// handleFetchObject streams an object's bytes. The content type is left to
// net/http sniffing.
func (s *Server) handleFetchObject(w http.ResponseWriter, r *http.Request) {
	if s.gateway == nil {
		s.writeServiceError(w, r, internalError(fmt.Errorf("retrieval is not configured")))
		return
	}

	obj, err := s.gateway.Fetch(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Length", strconv.FormatInt(obj.Ref.SizeBytes, 10))
	w.Header().Set("Cache-Control", "private, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	written, err := io.Copy(w, obj.Body)
	if err != nil {
		// Headers are already sent; the client sees a short body.
		s.log().Error("stream object", "object_id", obj.Ref.ID, "written", written, "size_bytes", obj.Ref.SizeBytes, "error", err)
	}
}
