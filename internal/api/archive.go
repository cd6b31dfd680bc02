package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/prospect/internal/store"
)

func (s *Server) handleGetArchived(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, http.StatusNotImplemented, "outcome archive is not configured")
		return
	}

	id := chi.URLParam(r, "id")

	row, err := s.archive.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "archived outcome not found")
		return
	}
	if err != nil {
		s.logger.Error("get archived outcome", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get archived outcome")
		return
	}

	s.writeJSON(w, http.StatusOK, row)
}
