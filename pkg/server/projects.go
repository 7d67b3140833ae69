package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/netval-app/netval/pkg/util"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"ollama_available": s.bridge.OllamaAvailable(r.Context()),
	})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.store.CreateProject(r.Context(), in.Name, in.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), mux.Vars(r)["project_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleDeleteProject removes the project tree and revokes every vault
// entry its devices referenced.
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	refs, err := s.store.DeleteProject(r.Context(), mux.Vars(r)["project_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	for _, ref := range refs {
		if err := s.vault.Delete(ref); err != nil {
			util.Warnf("revoking credential %s: %v", ref, err)
		}
	}
	writeJSON(w, http.StatusOK, statusEnvelope)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.store.ListAudit(r.Context(), mux.Vars(r)["project_id"], limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
