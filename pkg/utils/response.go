package utils

import (
	"encoding/json"
	"net/http"

	"fieldops-backend/internal/compliance"
)

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError sends an error response
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// StatusForKind maps an engine error kind to its HTTP status
func StatusForKind(kind compliance.Kind) int {
	switch kind {
	case compliance.KindValidation:
		return http.StatusBadRequest
	case compliance.KindPrecondition:
		return http.StatusConflict
	case compliance.KindGuardFailure, compliance.KindDataIntegrity:
		return http.StatusUnprocessableEntity
	case compliance.KindLocationUnavailable:
		return http.StatusPreconditionRequired
	default:
		return http.StatusInternalServerError
	}
}

// RespondEngineError sends a refused transition with its kind and, for guard failures, the failed guards.
// It reports false when err is not an engine error so the caller can fall back.
func RespondEngineError(w http.ResponseWriter, err error) bool {
	kind := compliance.KindOf(err)
	if kind == "" {
		return false
	}

	body := map[string]interface{}{
		"success": false,
		"error":   err.Error(),
		"kind":    kind,
	}
	if guards := compliance.GuardsOf(err); len(guards) > 0 {
		body["guards"] = guards
	}
	RespondJSON(w, StatusForKind(kind), body)
	return true
}
