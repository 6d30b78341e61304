package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/AdamBeresnev/bracket-manager/internal/httputil"
	"github.com/AdamBeresnev/bracket-manager/internal/service"
	"github.com/go-chi/chi/v5"
)

const (
	uploadQuotaMessage = "Monthly upload limit reached. Please contact support or try again next month."
	saveQuotaMessage   = "Monthly save limit reached. Please try again next month."
	// multipartOverhead leaves room for boundaries and the other form fields on top of the file.
	multipartOverhead = 1 << 20
)

type uploadResponse struct {
	Success bool `json:"success"`
	*service.UploadResult
}

type saveResponse struct {
	Success bool `json:"success"`
	*service.SaveResult
}

type getResponse struct {
	Success bool            `json:"success"`
	Bracket json.RawMessage `json:"bracket"`
}

func mountAPI(r chi.Router, d *deps) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"message": "API is alive",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.Post("/upload", func(w http.ResponseWriter, r *http.Request) {
		res, cleanup, err := uploadFromForm(w, r, d.uploads, r.URL.Query().Get("kind") == "logo")
		defer cleanup()
		if err != nil {
			status, msg, extra := uploadError(err, d.uploads.MaxSize())
			httputil.WriteJSONError(w, status, msg, extra)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, uploadResponse{Success: true, UploadResult: res})
	})

	r.Post("/brackets", func(w http.ResponseWriter, r *http.Request) {
		var req service.SaveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid JSON body", nil)
			return
		}

		res, err := d.saves.Save(r.Context(), &req)
		var quotaErr *service.QuotaError
		switch {
		case errors.Is(err, service.ErrTitleRequired):
			httputil.WriteJSONError(w, http.StatusBadRequest, "Bracket title is required", nil)
		case errors.As(err, &quotaErr):
			httputil.WriteJSONError(w, http.StatusTooManyRequests, saveQuotaMessage, map[string]any{
				"limit":   quotaErr.Limit,
				"current": quotaErr.Current,
			})
		case err != nil:
			httputil.JSONInternalError(w, "Failed to save bracket. Please try again.", err)
		default:
			httputil.WriteJSON(w, http.StatusOK, saveResponse{Success: true, SaveResult: res})
		}
	})

	getBracket := func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			id = r.URL.Query().Get("id")
		}

		doc, err := d.saves.Get(r.Context(), id)
		switch {
		case errors.Is(err, service.ErrBracketIDRequired):
			httputil.WriteJSONError(w, http.StatusBadRequest, "Bracket ID is required", nil)
		case errors.Is(err, service.ErrBracketNotFound):
			httputil.WriteJSONError(w, http.StatusNotFound, "Bracket not found", map[string]any{"id": id})
		case err != nil:
			httputil.JSONInternalError(w, "Failed to retrieve bracket. Please try again.", err)
		default:
			w.Header().Set("Cache-Control", "public, max-age=300")
			httputil.WriteJSON(w, http.StatusOK, getResponse{Success: true, Bracket: doc})
		}
	}
	r.Get("/brackets", getBracket)
	r.Get("/brackets/{id}", getBracket)
}

// uploadFromForm runs an upload with the "file" part of a multipart request. The returned cleanup
// closes the file and releases the parsed form; it must always be called.
func uploadFromForm(w http.ResponseWriter, r *http.Request, uploads *service.UploadService, logo bool) (*service.UploadResult, func(), error) {
	var file multipart.File
	cleanup := func() {
		if file != nil {
			file.Close()
		}
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}

	source := func() (*service.UploadRequest, error) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			return nil, service.ErrInvalidContentType
		}

		r.Body = http.MaxBytesReader(w, r.Body, uploads.MaxSize()+multipartOverhead)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				size := r.ContentLength
				if size <= 0 {
					size = tooLarge.Limit
				}
				return nil, &service.FileTooLargeError{Size: size, MaxSize: uploads.MaxSize()}
			}
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}

		f, header, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			return nil, service.ErrNoFile
		}
		if err != nil {
			return nil, err
		}
		file = f

		return &service.UploadRequest{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        f,
			Logo:        logo,
		}, nil
	}

	res, err := uploads.Upload(r.Context(), source)
	return res, cleanup, err
}

// uploadError maps an upload failure to its status, message and extra JSON fields.
func uploadError(err error, maxSize int64) (int, string, map[string]any) {
	var (
		quotaErr *service.QuotaError
		sizeErr  *service.FileTooLargeError
		typeErr  *service.FileTypeError
	)
	switch {
	case errors.As(err, &quotaErr):
		return http.StatusTooManyRequests, uploadQuotaMessage, map[string]any{
			"limit":     quotaErr.Limit,
			"current":   quotaErr.Current,
			"resetDate": quotaErr.ResetDate,
		}
	case errors.Is(err, service.ErrInvalidContentType):
		return http.StatusBadRequest, "Content-Type must be multipart/form-data", nil
	case errors.Is(err, service.ErrNoFile):
		return http.StatusBadRequest, "No file uploaded", nil
	case errors.Is(err, service.ErrEmptyFile):
		return http.StatusBadRequest, "File is empty", nil
	case errors.As(err, &sizeErr):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large. Maximum size is %dMB", maxSize>>20), map[string]any{
			"size":    sizeErr.Size,
			"maxSize": sizeErr.MaxSize,
		}
	case errors.As(err, &typeErr):
		return http.StatusBadRequest, "Invalid file type. Only images (JPEG, PNG, GIF, WebP) and PDFs are allowed.", map[string]any{
			"receivedType": typeErr.ReceivedType,
		}
	}
	return http.StatusInternalServerError, "Upload failed. Please try again.", map[string]any{"details": err.Error()}
}
