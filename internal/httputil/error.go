package httputil

import (
	"log/slog"
	"net/http"
)

// Error logs msg at a level matching status and writes it as plain text. Server errors are
// reported to the client by status text only.
func Error(w http.ResponseWriter, status int, msg string, err error) {
	attrs := []any{"status", status, "message", msg}
	if err != nil {
		attrs = append(attrs, "error", err)
	}

	switch {
	case status >= http.StatusInternalServerError:
		slog.Error("request failed", attrs...)
		msg = http.StatusText(status)
	case status == http.StatusConflict:
		slog.Info("request conflict", attrs...)
	default:
		slog.Warn("request rejected", attrs...)
	}
	http.Error(w, msg, status)
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	Error(w, http.StatusInternalServerError, msg, err)
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	Error(w, http.StatusBadRequest, msg, err)
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	Error(w, http.StatusNotFound, msg, err)
}

func Conflict(w http.ResponseWriter, msg string) {
	Error(w, http.StatusConflict, msg, nil)
}
