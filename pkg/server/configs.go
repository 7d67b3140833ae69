package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/netval-app/netval/pkg/confparse"
	"github.com/netval-app/netval/pkg/model"
	"github.com/netval-app/netval/pkg/util"
)

// maxConfigBytes caps uploaded configuration size.
const maxConfigBytes = 8 << 20

// configContent extracts the raw config from either a multipart upload
// (field "file") or a JSON body {"content": ...}.
func configContent(r *http.Request) (string, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxConfigBytes); err != nil {
			return "", util.NewValidationError("invalid multipart body: " + err.Error())
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return "", util.NewValidationError("multipart field 'file' is required")
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxConfigBytes))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	var in struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &in); err != nil {
		return "", err
	}
	return in.Content, nil
}

// ingestConfig snapshots raw config for a device and materializes the
// parsed interfaces and VLANs into the store.
func (s *Server) ingestConfig(r *http.Request, deviceID, content string, source model.SnapshotSource) (any, error) {
	if strings.TrimSpace(content) == "" {
		return nil, util.NewValidationError("config content is empty")
	}
	ctx := r.Context()
	snap, err := s.store.AddSnapshot(ctx, deviceID, content, source)
	if err != nil {
		return nil, err
	}
	dc := confparse.Parse(content)
	ifaces, vlans := confparse.Materialize(deviceID, dc)
	if err := s.store.ReplaceDeviceInterfaces(ctx, deviceID, ifaces); err != nil {
		return nil, err
	}
	if err := s.store.ReplaceDeviceVlans(ctx, deviceID, vlans); err != nil {
		return nil, err
	}
	return map[string]any{
		"snapshot": snap,
		"parsed":   dc,
		"warnings": dc.Warnings,
	}, nil
}

func (s *Server) handleUploadConfig(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["device_id"]
	content, err := configContent(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.ingestConfig(r, deviceID, content, model.SourceUpload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStoreConfig(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["device_id"]
	content, err := configContent(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.ingestConfig(r, deviceID, content, model.SourceManual)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLatestConfig(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LatestSnapshot(r.Context(), mux.Vars(r)["device_id"], false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
