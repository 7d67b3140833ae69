// Package server exposes the REST and WebSocket surface over the
// topology store, validation engine, and device I/O services.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/netval-app/netval/pkg/ai"
	"github.com/netval-app/netval/pkg/jobs"
	"github.com/netval-app/netval/pkg/remediate"
	"github.com/netval-app/netval/pkg/settings"
	"github.com/netval-app/netval/pkg/sshio"
	"github.com/netval-app/netval/pkg/store"
	"github.com/netval-app/netval/pkg/util"
	"github.com/netval-app/netval/pkg/vault"
)

// allowedOrigins are the local UI origins permitted by CORS and the
// WebSocket origin check.
var allowedOrigins = []string{
	"http://localhost:5173",
	"app://netval",
}

// Server wires every service behind the HTTP mux.
type Server struct {
	cfg     *settings.Settings
	store   *store.Store
	vault   vault.Vault
	jobs    *jobs.Manager
	ssh     *sshio.Service
	remedy  *remediate.Engine
	bridge  *ai.Bridge
	router  *mux.Router
	httpSrv *http.Server
}

// New assembles a Server over already-constructed services.
func New(cfg *settings.Settings, st *store.Store, v vault.Vault, jm *jobs.Manager, ssh *sshio.Service, remedy *remediate.Engine) *Server {
	s := &Server{
		cfg:    cfg,
		store:  st,
		vault:  v,
		jobs:   jm,
		ssh:    ssh,
		remedy: remedy,
		bridge: ai.New(cfg.AI),
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the full middleware-wrapped handler, used directly by
// httptest in tests.
func (s *Server) Handler() http.Handler {
	return s.cors(s.router)
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Projects
	api.HandleFunc("/projects", s.handleListProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects", s.handleCreateProject).Methods(http.MethodPost)
	api.HandleFunc("/projects/{project_id}", s.handleGetProject).Methods(http.MethodGet)
	api.HandleFunc("/projects/{project_id}", s.handleDeleteProject).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{project_id}/audit", s.handleListAudit).Methods(http.MethodGet)

	// Devices
	api.HandleFunc("/projects/{project_id}/devices", s.handleCreateDevice).Methods(http.MethodPost)
	api.HandleFunc("/devices/detail/{device_id}", s.handleGetDevice).Methods(http.MethodGet)
	api.HandleFunc("/devices/{project_id}", s.handleListDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/{device_id}", s.handleUpdateDevice).Methods(http.MethodPut)
	api.HandleFunc("/devices/{device_id}", s.handleDeleteDevice).Methods(http.MethodDelete)

	// Links
	api.HandleFunc("/projects/{project_id}/links", s.handleCreateLink).Methods(http.MethodPost)
	api.HandleFunc("/links/{project_id}", s.handleListLinks).Methods(http.MethodGet)
	api.HandleFunc("/links/{link_id}", s.handleDeleteLink).Methods(http.MethodDelete)

	// Configs
	api.HandleFunc("/devices/{device_id}/upload-config", s.handleUploadConfig).Methods(http.MethodPost)
	api.HandleFunc("/configs/{device_id}", s.handleStoreConfig).Methods(http.MethodPost)
	api.HandleFunc("/configs/{device_id}/latest", s.handleLatestConfig).Methods(http.MethodGet)

	// Validation and CLI generation
	api.HandleFunc("/projects/{project_id}/validate", s.handleValidate).Methods(http.MethodPost)
	api.HandleFunc("/projects/{project_id}/generate-cli", s.handleGenerateCLI).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{job_id}", s.handleGetJob).Methods(http.MethodGet)

	// Device I/O
	api.HandleFunc("/devices/{device_id}/ssh-connect", s.handleSSHConnect).Methods(http.MethodPost)
	api.HandleFunc("/devices/{device_id}/ingest", s.handleIngest).Methods(http.MethodPost)
	api.HandleFunc("/devices/{device_id}/credentials", s.handleSetCredentials).Methods(http.MethodPost)
	api.HandleFunc("/devices/{device_id}/credentials", s.handleDeleteCredentials).Methods(http.MethodDelete)

	// Remediation
	api.HandleFunc("/projects/{project_id}/remediate", s.handleRemediate).Methods(http.MethodPost)
	api.HandleFunc("/projects/{project_id}/apply", s.handleApply).Methods(http.MethodPost)
	api.HandleFunc("/projects/{project_id}/plan", s.handleLatestPlan).Methods(http.MethodGet)
	api.HandleFunc("/plans/{plan_id}/approve", s.handleApprovePlan).Methods(http.MethodPost)
	api.HandleFunc("/plans/{plan_id}/items/{index}", s.handleApproveItem).Methods(http.MethodPost)
	api.HandleFunc("/plans/{plan_id}/rollback", s.handleRollback).Methods(http.MethodPost)

	// AI bridge
	api.HandleFunc("/ai/settings", s.handleGetAISettings).Methods(http.MethodGet)
	api.HandleFunc("/ai/settings", s.handleUpdateAISettings).Methods(http.MethodPost)
	api.HandleFunc("/ai/models/{provider}", s.handleListModels).Methods(http.MethodGet)
	api.HandleFunc("/ai/test", s.handleTestAI).Methods(http.MethodPost)

	// WebSocket streams
	s.router.HandleFunc("/ws/simulation/{job_id}", s.handleWS)
	s.router.HandleFunc("/ws/remediation/{job_id}", s.handleWS)
	s.router.HandleFunc("/ws/ingestion/{job_id}", s.handleWS)
}

// ListenAndServe binds the loopback port and blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	util.Infof("listening on http://%s", addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains HTTP, then fails any jobs still in flight.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.jobs.Shutdown(ctx)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(origin string) bool {
	for _, o := range allowedOrigins {
		if origin == o {
			return true
		}
	}
	return false
}
