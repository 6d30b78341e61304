package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AdamBeresnev/bracket-manager/internal/bracket"
	"github.com/AdamBeresnev/bracket-manager/internal/httputil"
	"github.com/AdamBeresnev/bracket-manager/internal/middleware"
	"github.com/AdamBeresnev/bracket-manager/internal/service"
	"github.com/AdamBeresnev/bracket-manager/views"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxImportSize = 5 << 20

type deps struct {
	sessionManager *scs.SessionManager
	brackets       *service.BracketService
	uploads        *service.UploadService
	saves          *service.SaveService
	limiter        *middleware.IPRateLimiter
	allowedOrigins []string
	// fileDir is served under /files when uploads are kept on disk.
	fileDir  string
	registry *prometheus.Registry
}

func newRouter(d *deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))

	if d.fileDir != "" {
		fileServer := http.FileServer(http.Dir(d.fileDir))
		r.Handle("/files/*", http.StripPrefix("/files/", fileServer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Use(middleware.RateLimit(d.limiter))
		mountAPI(r, d)
	})

	r.Group(func(r chi.Router) {
		r.Use(d.sessionManager.LoadAndSave)
		r.Use(middleware.Workspace(d.sessionManager))
		mountEditor(r, d)
	})

	return r
}

func mountEditor(r chi.Router, d *deps) {
	editorPage := func(w http.ResponseWriter, r *http.Request) {
		var status views.Status
		if id := r.URL.Query().Get("id"); id != "" {
			status = loadShared(r, d, id)
		}

		state, err := d.brackets.State(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to load bracket", err)
			return
		}
		settings, err := d.brackets.Settings(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to load settings", err)
			return
		}

		views.Render(w, r, views.EditorPage(views.EditorPageData{
			Bracket:  views.PrepareBracketData(state),
			Settings: settings.Resolve(state.Config.BracketSize),
			Status:   status,
		}))
	}
	r.Get("/", editorPage)
	r.Get("/tools/bracket-manager", editorPage)

	r.Post("/bracket/field", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "Invalid form data", err)
			return
		}
		out, err := d.brackets.SetField(r.Context(), r.Form.Get("key"), r.Form.Get("value"))
		if err != nil {
			editorError(w, r, err)
			return
		}
		views.Render(w, r, views.StatusMessage(warningStatus(out.Warning)))
	})

	r.Post("/bracket/winner", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "Invalid form data", err)
			return
		}
		side, err := strconv.Atoi(r.Form.Get("side"))
		if err != nil {
			httputil.BadRequest(w, "Invalid side", err)
			return
		}
		out, err := d.brackets.SetWinner(r.Context(), r.Form.Get("match"), side)
		if err != nil {
			editorError(w, r, err)
			return
		}
		renderGrid(w, r, out.State, warningStatus(out.Warning))
	})

	r.Post("/bracket/winner/clear", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "Invalid form data", err)
			return
		}
		out, err := d.brackets.ClearWinner(r.Context(), r.Form.Get("match"))
		if err != nil {
			editorError(w, r, err)
			return
		}
		renderGrid(w, r, out.State, warningStatus(out.Warning))
	})

	r.Post("/bracket/decklist", func(w http.ResponseWriter, r *http.Request) {
		res, cleanup, err := uploadFromForm(w, r, d.uploads, false)
		defer cleanup()
		if err != nil {
			_, msg, _ := uploadError(err, d.uploads.MaxSize())
			statusOnly(w, r, views.Status{Message: msg, Kind: views.StatusError})
			return
		}
		// the multipart form has been parsed by the upload
		out, err := d.brackets.AttachDecklist(r.Context(), r.FormValue("key"), res.URL)
		if err != nil {
			editorError(w, r, err)
			return
		}
		status := warningStatus(out.Warning)
		if status.Message == "" {
			status = views.Status{Message: "Decklist uploaded: " + res.OriginalName}
		}
		renderGrid(w, r, out.State, status)
	})

	r.Post("/bracket/logo", func(w http.ResponseWriter, r *http.Request) {
		res, cleanup, err := uploadFromForm(w, r, d.uploads, true)
		defer cleanup()
		if err != nil {
			_, msg, _ := uploadError(err, d.uploads.MaxSize())
			statusOnly(w, r, views.Status{Message: msg, Kind: views.StatusError})
			return
		}
		out, err := d.brackets.SetLogo(r.Context(), res.URL)
		if err != nil {
			editorError(w, r, err)
			return
		}
		renderGrid(w, r, out.State, warningStatus(out.Warning))
	})

	r.Post("/bracket/config", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "Invalid form data", err)
			return
		}
		cfg := bracket.Config{Mode: bracket.Mode(r.Form.Get("type"))}
		cfg.BracketSize, _ = strconv.Atoi(r.Form.Get("bracketSize"))
		if cfg.IsTeams() {
			cfg.PlayersPerTeam, _ = strconv.Atoi(r.Form.Get("playersPerTeam"))
		}
		confirmed := r.Form.Get("confirmed") == "true"

		out, err := d.brackets.Reconfigure(r.Context(), cfg, confirmed)
		if errors.Is(err, service.ErrConfirmationRequired) {
			if !views.IsHTMX(r) {
				httputil.Conflict(w, "Changing the configuration clears winners and decklists; resend with confirmed=true")
				return
			}
			w.Header().Set("HX-Retarget", "#status")
			w.Header().Set("HX-Reswap", "outerHTML")
			views.Render(w, r, views.ConfirmReconfigure(cfg))
			return
		}
		if err != nil {
			editorError(w, r, err)
			return
		}
		renderGrid(w, r, out.State, warningStatus(out.Warning))
	})

	r.Post("/bracket/clear-results", func(w http.ResponseWriter, r *http.Request) {
		out, err := d.brackets.ClearResults(r.Context())
		if err != nil {
			editorError(w, r, err)
			return
		}
		renderGrid(w, r, out.State, warningStatus(out.Warning))
	})

	r.Post("/bracket/reset", func(w http.ResponseWriter, r *http.Request) {
		out, err := d.brackets.Reset(r.Context())
		if err != nil {
			editorError(w, r, err)
			return
		}
		renderGrid(w, r, out.State, warningStatus(out.Warning))
	})

	r.Post("/bracket/import", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
		file, _, err := r.FormFile("file")
		if err != nil {
			statusOnly(w, r, views.Status{Message: "No file uploaded", Kind: views.StatusError})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			statusOnly(w, r, views.Status{Message: "Could not read the import file", Kind: views.StatusError})
			return
		}

		res, err := d.brackets.Import(r.Context(), data)
		if errors.Is(err, bracket.ErrMalformedSnapshot) {
			statusOnly(w, r, views.Status{Message: "Invalid bracket file", Kind: views.StatusError})
			return
		}
		if err != nil {
			editorError(w, r, err)
			return
		}

		status := importStatus(res)
		w.Header().Set("HX-Trigger-After-Settle", "bracket-rendered")
		renderGrid(w, r, res.State, status)
	})

	r.Get("/bracket/export", func(w http.ResponseWriter, r *http.Request) {
		name, data, err := d.brackets.Export(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to export bracket", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
		w.Write(data)
	})

	r.Post("/bracket/settings", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "Invalid form data", err)
			return
		}
		settings := parseSettings(r)
		warning, err := d.brackets.SaveSettings(r.Context(), settings)
		if err != nil {
			httputil.InternalServerError(w, "Failed to save settings", err)
			return
		}
		msg := "Settings saved"
		if warning != "" {
			msg = warning
		}
		renderSettings(w, r, d, settings, msg)
	})

	r.Post("/bracket/settings/reset", func(w http.ResponseWriter, r *http.Request) {
		settings, err := d.brackets.ResetSettings(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to reset settings", err)
			return
		}
		renderSettings(w, r, d, settings, "Settings reset to defaults")
	})

	r.Post("/bracket/share", func(w http.ResponseWriter, r *http.Request) {
		res, err := d.brackets.Share(r.Context())
		var quotaErr *service.QuotaError
		switch {
		case errors.As(err, &quotaErr):
			views.Render(w, r, views.StatusMessage(views.Status{Message: saveQuotaMessage, Kind: views.StatusError}))
		case err != nil:
			httputil.InternalServerError(w, "Failed to share bracket", err)
		default:
			views.Render(w, r, views.StatusMessage(views.Status{Message: "Share link:", Link: res.ShareURL}))
		}
	})

	r.Get("/presentation", func(w http.ResponseWriter, r *http.Request) {
		state, settings, err := d.brackets.Presentation(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to build presentation", err)
			return
		}
		if r.URL.Query().Has("download") {
			name := views.PresentationFileName(time.Now())
			w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
		}
		views.Render(w, r, views.Presentation(views.PrepareBracketData(state), settings))
	})
}

// loadShared copies a saved bracket into the workspace and describes the outcome for the page.
func loadShared(r *http.Request, d *deps, id string) views.Status {
	res, err := d.brackets.LoadShared(r.Context(), id)
	switch {
	case errors.Is(err, service.ErrBracketNotFound):
		return views.Status{Message: "Bracket not found", Kind: views.StatusError}
	case err != nil:
		slog.Error("failed to load shared bracket", "id", id, "error", err)
		return views.Status{Message: "Failed to retrieve bracket. Please try again.", Kind: views.StatusError}
	}
	if res.Warning != "" {
		return warningStatus(res.Warning)
	}
	return views.Status{Message: "Loaded shared bracket"}
}

func renderGrid(w http.ResponseWriter, r *http.Request, state bracket.State, status views.Status) {
	views.Render(w, r, views.BracketGrid(views.PrepareBracketData(state), status))
}

func renderSettings(w http.ResponseWriter, r *http.Request, d *deps, settings bracket.DisplaySettings, msg string) {
	state, err := d.brackets.State(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "Failed to load bracket", err)
		return
	}
	views.Render(w, r, views.SettingsPanel(settings.Resolve(state.Config.BracketSize), msg))
}

// statusOnly swaps just the status line, whatever the requesting element targeted.
func statusOnly(w http.ResponseWriter, r *http.Request, status views.Status) {
	w.Header().Set("HX-Retarget", "#status")
	w.Header().Set("HX-Reswap", "outerHTML")
	views.Render(w, r, views.StatusMessage(status))
}

func warningStatus(warning string) views.Status {
	if warning == "" {
		return views.Status{}
	}
	return views.Status{Message: warning, Kind: views.StatusWarning}
}

func importStatus(res service.ImportResult) views.Status {
	if res.Warning != "" {
		return warningStatus(res.Warning)
	}
	msg := "Bracket imported"
	if res.Legacy {
		msg = "Legacy bracket imported"
	}
	if len(res.Dropped) > 0 {
		return views.Status{
			Message: fmt.Sprintf("%s; skipped %d entries: %s", msg, len(res.Dropped), strings.Join(res.Dropped, ", ")),
			Kind:    views.StatusWarning,
		}
	}
	return views.Status{Message: msg}
}

// editorError reports invalid input as 400. htmx does not swap error responses, so its requests
// get the message in the status line instead.
func editorError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, bracket.ErrInvalidAddress),
		errors.Is(err, bracket.ErrInvalidSide),
		errors.Is(err, bracket.ErrInvalidMode),
		errors.Is(err, bracket.ErrInvalidBracketSize),
		errors.Is(err, bracket.ErrInvalidPlayersPerTeam):
		if views.IsHTMX(r) {
			slog.Warn("rejected editor input", "path", r.URL.Path, "error", err)
			statusOnly(w, r, views.Status{Message: err.Error(), Kind: views.StatusError})
			return
		}
		httputil.BadRequest(w, err.Error(), err)
	default:
		httputil.InternalServerError(w, "Failed to update bracket", err)
	}
}

// parseSettings reads the settings form. Blank or invalid numbers become zero, which means
// "use the default". Opacities are clamped to 1.
func parseSettings(r *http.Request) bracket.DisplaySettings {
	atoi := func(name string) int {
		v, _ := strconv.Atoi(strings.TrimSpace(r.Form.Get(name)))
		return v
	}
	opacity := func(name string) float64 {
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Form.Get(name)), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return min(max(v, 0), 1)
	}
	return bracket.DisplaySettings{
		TournamentTitle: strings.TrimSpace(r.Form.Get("tournamentTitle")),
		LogoSize:        atoi("logoSize"),
		MatchSpacing:    atoi("matchSpacing"),
		RoundGap:        atoi("roundGap"),
		TeamNameSize:    atoi("teamNameSize"),
		PlayerNameSize:  atoi("playerNameSize"),
		DeckInfoSize:    atoi("deckInfoSize"),
		MatchOpacity:    opacity("matchOpacity"),
		BorderOpacity:   opacity("borderOpacity"),
		MatchWidth:      atoi("matchWidth"),
		MatchPadding:    atoi("matchPadding"),
		CornerRadius:    atoi("cornerRadius"),
	}
}
