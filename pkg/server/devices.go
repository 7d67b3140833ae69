package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/netval-app/netval/pkg/store"
	"github.com/netval-app/netval/pkg/util"
	"github.com/netval-app/netval/pkg/vault"
)

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var in store.DeviceCreate
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	d, err := s.store.CreateDevice(r.Context(), mux.Vars(r)["project_id"], in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.store.ListDevices(r.Context(), mux.Vars(r)["project_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.GetDevice(r.Context(), mux.Vars(r)["device_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var in store.DeviceUpdate
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	d, err := s.store.UpdateDevice(r.Context(), mux.Vars(r)["device_id"], in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	ref, err := s.store.DeleteDevice(r.Context(), mux.Vars(r)["device_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if ref != "" {
		if err := s.vault.Delete(ref); err != nil {
			util.Warnf("revoking credential %s: %v", ref, err)
		}
	}
	writeJSON(w, http.StatusOK, statusEnvelope)
}

func (s *Server) handleSetCredentials(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["device_id"]
	var in vault.Material
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	d, err := s.store.GetDevice(r.Context(), deviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	if in.Username == "" {
		writeError(w, util.NewValidationError("username is required"))
		return
	}

	// Replace, never accumulate: drop the old vault entry first.
	if d.CredentialRef != "" {
		if err := s.vault.Delete(d.CredentialRef); err != nil {
			util.Warnf("revoking credential %s: %v", d.CredentialRef, err)
		}
	}
	ref, err := s.vault.Store(d.ProjectID, d.ID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.SetDeviceCredentialRef(r.Context(), d.ID, ref); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"credential_ref": ref})
}

func (s *Server) handleDeleteCredentials(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.GetDevice(r.Context(), mux.Vars(r)["device_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if d.CredentialRef != "" {
		if err := s.vault.Delete(d.CredentialRef); err != nil {
			writeError(w, err)
			return
		}
		if err := s.store.SetDeviceCredentialRef(r.Context(), d.ID, ""); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, statusEnvelope)
}
