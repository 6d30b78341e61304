package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// WriteJSON writes v with the given status. Encoding failures can only be logged at this point.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// WriteJSONError writes the API error envelope {"error": msg, ...extra}.
func WriteJSONError(w http.ResponseWriter, status int, msg string, extra map[string]any) {
	body := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		body[k] = v
	}
	body["error"] = msg

	if status >= http.StatusInternalServerError {
		slog.Error("api error", "status", status, "message", msg, "details", extra["details"])
	} else {
		slog.Warn("api error", "status", status, "message", msg)
	}
	WriteJSON(w, status, body)
}

// JSONInternalError reports err to the client as details, the way the upload API always has.
func JSONInternalError(w http.ResponseWriter, msg string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	WriteJSONError(w, http.StatusInternalServerError, msg, map[string]any{"details": details})
}
