package server

import (
	"fmt"
	"net/http"

	"carlot/internal/api"
)

func (s *Server) handleAdminReconcile(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil {
		s.writeServiceError(w, r, internalError(fmt.Errorf("reconciliation is not configured")))
		return
	}

	apply, err := queryBool(r, "apply")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	s.withLimiter(w, r, s.reconcileLimiter, "reconcile", func() {
		report, err := s.sweeper.Run(r.Context(), apply)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		s.log().Info("reconcile complete",
			"apply", apply,
			"orphans", len(report.Orphans),
			"dangling", len(report.Dangling),
			"deleted", report.DeletedCount,
			"unlinked", report.UnlinkedCount,
			"failed", report.FailedCount,
		)
		s.writeJSON(w, http.StatusOK, api.ReconcileResponse(report))
	})
}
