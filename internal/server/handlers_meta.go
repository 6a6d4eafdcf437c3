package server

import (
	"net/http"

	"fieldsign/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	schemaVersion, err := s.store.SchemaVersion()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	depth, err := s.store.OutboxDepth(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.InfoResponse{
		Name:          "fieldsign",
		Version:       s.version,
		SchemaVersion: schemaVersion,
		OutboxDepth:   depth,
	})
}
