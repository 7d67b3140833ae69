package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/netval-app/netval/pkg/util"
)

// statusEnvelope is the bare success body for delete-style operations.
var statusEnvelope = map[string]string{"status": "success"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			util.Errorf("encoding response: %v", err)
		}
	}
}

// writeError maps the error taxonomy onto HTTP statuses: not-found 404,
// validation 400, confirmation 409, AI bridge 503, SSH layer 502,
// everything else 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, util.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, util.ErrValidationFailed):
		status = http.StatusBadRequest
	case errors.Is(err, util.ErrConfirmationRequired):
		status = http.StatusConflict
	case errors.Is(err, util.ErrAIUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, util.ErrDeviceUnreachable),
		errors.Is(err, util.ErrAuthFailed),
		errors.Is(err, util.ErrPushFailed):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

// decodeBody strictly decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return util.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}
