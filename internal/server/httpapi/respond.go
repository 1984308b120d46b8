package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/api"
	"github.com/dmitrijs2005/credkeeper/internal/server/validation"
)

const maxJSONBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeDetail(w http.ResponseWriter, status int, detail, code string) {
	writeJSON(w, status, api.DetailError{Detail: detail, Code: code})
}

// decodeJSON reads a single JSON object into dst. Bodies over 1 MiB and
// unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeDetail(w, http.StatusBadRequest, api.MsgMalformedBody, "")
		return false
	}
	return true
}

// writeError maps a service error to a response. Anything unrecognised is
// a 500 with a generic body; the cause is logged at Error, which the
// Sentry logger forwards.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := validation.AsError(err); ok {
		writeJSON(w, http.StatusBadRequest, ve.Fields)
		return
	}

	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		writeDetail(w, http.StatusBadRequest, api.MsgBadCredentials, "")
	case errors.Is(err, common.ErrAccountDisabled):
		writeDetail(w, http.StatusBadRequest, api.MsgAccountDisabled, "")
	case errors.Is(err, common.ErrorUnauthorized):
		writeDetail(w, http.StatusUnauthorized, api.MsgTokenNotValid, api.CodeTokenNotValid)
	default:
		h.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeDetail(w, http.StatusInternalServerError, api.MsgInternalError, "")
	}
}
