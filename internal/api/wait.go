package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/prospect/internal/engine"
	"github.com/seantiz/prospect/internal/model"
	"github.com/seantiz/prospect/internal/store"
)

const (
	defaultWaitTimeoutS = 30
	maxWaitTimeoutS     = 300
)

// waitRequest is the JSON body for POST /v1/explorations/{id}/wait. An empty
// body uses the default timeout.
type waitRequest struct {
	TimeoutS *int `json:"timeout_s"`
}

// batchRequest is the JSON body for POST /v1/explorations/batch.
type batchRequest struct {
	Explorations []engine.Spec `json:"explorations"`
	TimeoutS     *int          `json:"timeout_s"`
}

// batchResponse reports the outcomes that materialized within the timeout.
// Returned below Requested means some explorations did not finish in time.
type batchResponse struct {
	Outcomes  []*model.Outcome `json:"outcomes"`
	Requested int              `json:"requested"`
	Returned  int              `json:"returned"`
}

func (s *Server) handleWaitExploration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	timeout, ok := s.parseWaitTimeout(w, r)
	if !ok {
		return
	}

	outcome, err := s.engine.Wait(r.Context(), id, timeout)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "exploration not found")
		case errors.Is(err, engine.ErrNotReady):
			// Still running after the wait window; hand back the live record.
			exp, gerr := s.engine.Get(r.Context(), id)
			if gerr != nil {
				s.writeError(w, http.StatusInternalServerError, "failed to get exploration")
				return
			}
			s.writeJSON(w, http.StatusAccepted, exp)
		case errors.Is(err, engine.ErrCancelled):
			s.writeError(w, http.StatusGone, "exploration was cancelled")
		default:
			s.logger.Error("wait for exploration", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to wait for exploration")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if len(req.Explorations) == 0 {
		s.writeError(w, http.StatusBadRequest, "explorations must not be empty")
		return
	}
	for _, spec := range req.Explorations {
		if spec.Type == "" {
			s.writeError(w, http.StatusBadRequest, "every exploration needs a type")
			return
		}
	}

	timeout := defaultWaitTimeoutS * time.Second
	if req.TimeoutS != nil {
		if *req.TimeoutS <= 0 || *req.TimeoutS > maxWaitTimeoutS {
			s.writeError(w, http.StatusBadRequest, "timeout_s out of range")
			return
		}
		timeout = time.Duration(*req.TimeoutS) * time.Second
	}

	outcomes := s.engine.RunBatch(r.Context(), req.Explorations, timeout)
	if outcomes == nil {
		outcomes = []*model.Outcome{}
	}

	s.writeJSON(w, http.StatusOK, batchResponse{
		Outcomes:  outcomes,
		Requested: len(req.Explorations),
		Returned:  len(outcomes),
	})
}

// parseWaitTimeout reads the optional wait body. Reports false after writing
// an error response for out-of-range values.
func (s *Server) parseWaitTimeout(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	var req waitRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return 0, false
	}

	if req.TimeoutS == nil {
		return defaultWaitTimeoutS * time.Second, true
	}
	if *req.TimeoutS <= 0 || *req.TimeoutS > maxWaitTimeoutS {
		s.writeError(w, http.StatusBadRequest, "timeout_s out of range")
		return 0, false
	}
	return time.Duration(*req.TimeoutS) * time.Second, true
}
