package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/netval-app/netval/pkg/store"
)

func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var in store.LinkCreate
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	l, err := s.store.CreateLink(r.Context(), mux.Vars(r)["project_id"], in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := s.store.ListLinks(r.Context(), mux.Vars(r)["project_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func (s *Server) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteLink(r.Context(), mux.Vars(r)["link_id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusEnvelope)
}
