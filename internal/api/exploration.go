package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/prospect/internal/engine"
	"github.com/seantiz/prospect/internal/model"
	"github.com/seantiz/prospect/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// createExplorationRequest is the JSON body for POST /v1/explorations.
type createExplorationRequest struct {
	Type       string           `json:"type"`
	Input      json.RawMessage  `json:"input"`
	Parameters model.Parameters `json:"parameters"`
	ParentID   string           `json:"parent_id"`
}

// listExplorationsResponse wraps the paginated list response.
type listExplorationsResponse struct {
	Explorations []*model.Exploration `json:"explorations"`
	Total        int                  `json:"total"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
}

func (s *Server) handleCreateExploration(w http.ResponseWriter, r *http.Request) {
	var req createExplorationRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Type == "" {
		s.writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	if req.Parameters.TimeoutS != nil && *req.Parameters.TimeoutS <= 0 {
		s.writeError(w, http.StatusBadRequest, "timeout_s must be positive")
		return
	}

	exp, err := s.engine.Submit(r.Context(), engine.Spec{
		Type:       req.Type,
		Input:      req.Input,
		Parameters: req.Parameters,
		ParentID:   req.ParentID,
	})
	if err != nil {
		if errors.Is(err, engine.ErrStopped) {
			s.writeError(w, http.StatusServiceUnavailable, "engine is shutting down")
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusBadRequest, "parent exploration not found")
			return
		}
		s.logger.Error("submit exploration", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit exploration")
		return
	}

	s.writeJSON(w, http.StatusAccepted, exp)
}

func (s *Server) handleGetExploration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	exp, err := s.engine.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "exploration not found")
		return
	}
	if err != nil {
		s.logger.Error("get exploration", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get exploration")
		return
	}

	s.writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleListExplorations(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	explorations, total, err := s.store.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list explorations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list explorations")
		return
	}

	if explorations == nil {
		explorations = []*model.Exploration{}
	}

	s.writeJSON(w, http.StatusOK, listExplorationsResponse{
		Explorations: explorations,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	outcome, err := s.engine.Result(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "exploration not found")
		case errors.Is(err, engine.ErrNotReady):
			s.writeError(w, http.StatusConflict, "exploration not finished")
		case errors.Is(err, engine.ErrCancelled):
			s.writeError(w, http.StatusGone, "exploration was cancelled")
		default:
			s.logger.Error("get result", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to get result")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleCancelExploration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.engine.Get(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "exploration not found")
			return
		}
		s.logger.Error("cancel: get exploration", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to cancel exploration")
		return
	}

	if !s.engine.Cancel(r.Context(), id) {
		s.writeError(w, http.StatusConflict, "exploration is not running")
		return
	}

	exp, err := s.engine.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("get cancelled exploration", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve exploration")
		return
	}

	s.writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	removed, err := s.engine.ClearCompleted(r.Context())
	if err != nil {
		s.logger.Error("clear completed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to clear explorations")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
