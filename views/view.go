package views

import (
	"net/http"

	"github.com/a-h/templ"
)

func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsHTMX reports whether the request was issued by htmx rather than a full page load.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") != ""
}
