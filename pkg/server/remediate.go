package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/netval-app/netval/pkg/checks"
	"github.com/netval-app/netval/pkg/jobs"
	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/remediate"
	"github.com/netval-app/netval/pkg/util"
)

// handleIngest enqueues an ingestion job pulling the device's live
// config over SSH.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["device_id"]
	d, err := s.store.GetDevice(r.Context(), deviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	job, err := s.jobs.Enqueue(r.Context(), d.ProjectID, model.JobIngestion,
		func(ctx context.Context, emit func(jobs.Event)) (json.RawMessage, error) {
			res, err := s.ssh.Ingest(ctx, deviceID)
			if err != nil {
				return nil, err
			}
			emit(jobs.Event{Event: jobs.EventPushDeviceComplete, DeviceID: deviceID})
			return json.Marshal(res)
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": job.ID})
}

func (s *Server) handleSSHConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.ssh.TestConnection(r.Context(), mux.Vars(r)["device_id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusEnvelope)
}

// handleRemediate builds a pending plan from the failed findings of the
// project's most recent completed simulation.
func (s *Server) handleRemediate(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["project_id"]
	job, err := s.store.LatestCompletedJob(r.Context(), projectID, model.JobSimulation)
	if err != nil {
		writeError(w, err)
		return
	}
	var audit checks.AuditResult
	if err := json.Unmarshal(job.Result, &audit); err != nil {
		writeError(w, util.NewStorageError("decode audit result", err))
		return
	}
	plan, err := remediate.Plan(r.Context(), s.store, projectID, audit.Findings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleLatestPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.store.LatestPlan(r.Context(), mux.Vars(r)["project_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleApprovePlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.store.TransitionPlan(r.Context(), mux.Vars(r)["plan_id"], model.PlanApproved)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleApproveItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeError(w, util.NewValidationError("item index must be an integer"))
		return
	}
	var in struct {
		Approved bool `json:"approved"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	plan, err := s.store.SetPlanItemApproved(r.Context(), vars["plan_id"], index, in.Approved)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// handleApply executes the project's plan against live devices. The
// confirm gate is checked here, before any job or SSH session exists.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["project_id"]
	var in struct {
		Confirm bool   `json:"confirm"`
		PlanID  string `json:"plan_id,omitempty"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if !in.Confirm {
		writeError(w, util.ErrConfirmationRequired)
		return
	}

	planID := in.PlanID
	if planID == "" {
		plan, err := s.store.LatestPlan(r.Context(), projectID)
		if err != nil {
			writeError(w, err)
			return
		}
		planID = plan.ID
	}

	job, err := s.jobs.Enqueue(r.Context(), projectID, model.JobRemediation,
		func(ctx context.Context, emit func(jobs.Event)) (json.RawMessage, error) {
			res, err := s.remedy.Apply(ctx, planID, true, pushProgress(emit))
			if err != nil {
				return nil, err
			}
			return json.Marshal(res)
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": job.ID})
}

// handleRollback reverses an applied plan while it is still inside the
// retention window.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["plan_id"]
	var in struct {
		Confirm bool `json:"confirm"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if !in.Confirm {
		writeError(w, util.ErrConfirmationRequired)
		return
	}
	plan, err := s.store.GetPlan(r.Context(), planID)
	if err != nil {
		writeError(w, err)
		return
	}

	job, err := s.jobs.Enqueue(r.Context(), plan.ProjectID, model.JobRemediation,
		func(ctx context.Context, emit func(jobs.Event)) (json.RawMessage, error) {
			res, err := s.remedy.Rollback(ctx, planID, true, pushProgress(emit))
			if err != nil {
				return nil, err
			}
			return json.Marshal(res)
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": job.ID})
}

// pushProgress adapts remediation progress callbacks onto job events.
func pushProgress(emit func(jobs.Event)) remediate.Progress {
	return remediate.Progress{
		Line: func(deviceID, line string) {
			emit(jobs.Event{Event: jobs.EventPushLine, DeviceID: deviceID, Line: line})
		},
		DeviceComplete: func(o remediate.DeviceOutcome) {
			status := "applied"
			if o.Error != "" {
				status = "failed"
			}
			emit(jobs.Event{
				Event:    jobs.EventPushDeviceComplete,
				DeviceID: o.DeviceID,
				Status:   status,
				Error:    o.Error,
			})
		},
	}
}
