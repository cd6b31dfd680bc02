package api

import (
	"net/http"
)

// handlersResponse lists the registered exploration types.
type handlersResponse struct {
	Handlers []string `json:"handlers"`
}

func (s *Server) handleListHandlers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, handlersResponse{Handlers: s.registry.Types()})
}
