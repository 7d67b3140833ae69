package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/netval-app/netval/pkg/ai"
	"github.com/netval-app/netval/pkg/settings"
	"github.com/netval-app/netval/pkg/util"
)

func (s *Server) handleGetAISettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.AI)
}

// handleUpdateAISettings swaps the live bridge configuration and persists
// it to the config file.
func (s *Server) handleUpdateAISettings(w http.ResponseWriter, r *http.Request) {
	var in settings.AI
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if !ai.ValidProvider(in.Provider) {
		writeError(w, util.NewValidationError("unknown AI provider '"+in.Provider+"'"))
		return
	}
	s.cfg.AI = in
	s.bridge = ai.New(in)
	if err := s.cfg.Save(settings.DefaultConfigPath()); err != nil {
		util.Warnf("persisting AI settings: %v", err)
	}
	writeJSON(w, http.StatusOK, s.cfg.AI)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.bridge.ListModels(r.Context(), mux.Vars(r)["provider"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"models": models})
}

// handleTestAI probes a provider configuration without adopting it.
func (s *Server) handleTestAI(w http.ResponseWriter, r *http.Request) {
	var in settings.AI
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	probe := ai.New(in)
	if err := probe.TestConnection(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": err.Error()})
		return
	}
	models, err := probe.ListModels(r.Context(), in.Provider)
	if err != nil {
		models = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "connection ok",
		"models":  models,
	})
}
