package server

import (
	"encoding/json"
	"net/http"

	"github.com/mrpoffice-collab/FireflyGrove-sub005/internal/routing"
	"github.com/mrpoffice-collab/FireflyGrove-sub005/pkg/httperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeInvalidJSON(w http.ResponseWriter, r *http.Request) {
	routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_json", "invalid json")
}

// writeServiceError translates the typed service errors onto the wire.
// The message stays the stable uppercase code the service chose; the
// envelope code is the transport-level class.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	rc := routing.RouteClassInternalAPI
	switch {
	case httperr.IsValidation(err):
		routing.WriteError(w, r, rc, http.StatusBadRequest, "invalid_argument", err.Error())
	case httperr.IsUnauthorized(err):
		routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthorized", err.Error())
	case httperr.IsForbidden(err):
		routing.WriteErrorReason(w, r, rc, http.StatusForbidden, "forbidden", err.Error(), httperr.ForbiddenReason(err))
	case httperr.IsNotFound(err):
		routing.WriteError(w, r, rc, http.StatusNotFound, "not_found", err.Error())
	case httperr.IsCapacityExceeded(err):
		routing.WriteError(w, r, rc, http.StatusConflict, "grove_capacity_exceeded", err.Error())
	case httperr.IsConflict(err):
		routing.WriteError(w, r, rc, http.StatusConflict, "conflict", err.Error())
	case httperr.IsExpired(err):
		routing.WriteError(w, r, rc, http.StatusGone, "expired", err.Error())
	case httperr.IsUnavailable(err):
		routing.WriteError(w, r, rc, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		routing.WriteError(w, r, rc, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeInvalidJSON(w, r)
		return false
	}
	return true
}
