package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"sentinel-hq/bastion/pkg/evaluation"
	"sentinel-hq/bastion/pkg/policystore"
)

// detailResponse is the error body shape for every API error.
type detailResponse struct {
	Detail string `json:"detail"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeDetail writes a JSON error response {"detail": ...}.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

// writeError maps domain errors onto HTTP status codes:
// not-found → 404, already-exists → 409, anything else → 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, policystore.ErrPolicyNotFound),
		errors.Is(err, evaluation.ErrConnectionNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, policystore.ErrPolicyExists):
		writeDetail(w, http.StatusConflict, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	}
}
