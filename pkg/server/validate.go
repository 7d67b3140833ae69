package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/netval-app/netval/pkg/checks"
	"github.com/netval-app/netval/pkg/jobs"
	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/render"
	"github.com/netval-app/netval/pkg/topology"
)

// handleValidate enqueues a simulation job that assembles the project
// graph and runs the full check registry, streaming per-check progress.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["project_id"]
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		writeError(w, err)
		return
	}

	job, err := s.jobs.Enqueue(r.Context(), projectID, model.JobSimulation,
		func(ctx context.Context, emit func(jobs.Event)) (json.RawMessage, error) {
			g, err := topology.Assemble(ctx, s.store, projectID)
			if err != nil {
				return nil, err
			}
			engine := checks.NewEngine()
			audit := engine.Run(g, func(event, checkID string) {
				emit(jobs.Event{Event: event, CheckID: checkID})
			})
			return json.Marshal(audit)
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": job.ID})
}

// handleGenerateCLI renders the full CLI for every device in the project.
// Output is deterministic for unchanged topology.
func (s *Server) handleGenerateCLI(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["project_id"]
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		writeError(w, err)
		return
	}
	devices, err := s.store.ListDevices(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"configs": render.ProjectCLI(devices)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), mux.Vars(r)["job_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
