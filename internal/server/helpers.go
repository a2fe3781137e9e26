package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/models"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// writeServiceError maps a service-layer error to an HTTP response.
// Fail-fast domain rejections map to 400, missing resources to 404,
// risk-gate rejections to 403, upstream failures to 502/504.
func writeServiceError(w http.ResponseWriter, logger *common.Logger, err error) {
	var ge *models.GateRejectedError
	if errors.As(err, &ge) {
		WriteJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":       ge.Reason,
			"code":        ge.Gate,
			"decision_id": ge.DecisionID,
		})
		return
	}

	var ue *models.UpstreamError
	if errors.As(err, &ue) {
		status := http.StatusBadGateway
		if ue.Timeout {
			status = http.StatusGatewayTimeout
		}
		logger.Error().Err(err).Str("service", ue.Service).Msg("Upstream failure")
		WriteErrorWithCode(w, status, ue.Error(), "upstream_"+ue.Service)
		return
	}

	switch {
	case models.IsDomainRejection(err):
		WriteError(w, http.StatusBadRequest, err.Error())
	case models.IsNotFound(err):
		WriteError(w, http.StatusNotFound, err.Error())
	default:
		logger.Error().Err(err).Msg("Unhandled service error")
		WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// requireUser resolves the authenticated user ID from the request context.
// Writes a 401 and returns "" when no identity is present.
func requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := common.ResolveUserID(r.Context())
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "authentication required")
	}
	return userID
}
