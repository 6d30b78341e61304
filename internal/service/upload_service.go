package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/AdamBeresnev/bracket-manager/internal/metrics"
	"github.com/AdamBeresnev/bracket-manager/internal/storage"
	"github.com/AdamBeresnev/bracket-manager/internal/store"
	"github.com/google/uuid"
)

// UploadRequest is one file taken from a multipart form.
type UploadRequest struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	// Logo routes the file to the logos prefix instead of decklists.
	Logo bool
}

// FileSource produces the uploaded file. It is only called once the quota check has passed, so a
// client over its limit gets a 429 before the body is even parsed.
type FileSource func() (*UploadRequest, error)

type UploadResult struct {
	URL          string `json:"url"`
	FileName     string `json:"fileName"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	UploadCount  int    `json:"uploadCount"`
	Limit        int    `json:"limit"`
}

type UploadService struct {
	uploader     storage.FileUploader
	quota        *QuotaService
	metrics      *metrics.Metrics
	maxSize      int64
	allowedTypes []string
	now          func() time.Time
}

func NewUploadService(uploader storage.FileUploader, quota *QuotaService, maxSize int64, allowedTypes []string, m *metrics.Metrics) *UploadService {
	return &UploadService{
		uploader:     uploader,
		quota:        quota,
		metrics:      m,
		maxSize:      maxSize,
		allowedTypes: allowedTypes,
		now:          time.Now,
	}
}

func (s *UploadService) MaxSize() int64 {
	return s.maxSize
}

func (s *UploadService) Upload(ctx context.Context, source FileSource) (*UploadResult, error) {
	current, err := s.quota.Check(ctx, store.CounterUploads)
	if err != nil {
		s.metrics.Upload("quota", 0)
		return nil, err
	}

	req, err := source()
	if err != nil {
		s.metrics.Upload("rejected", 0)
		return nil, err
	}
	if req == nil || req.Body == nil {
		s.metrics.Upload("rejected", 0)
		return nil, ErrNoFile
	}
	if req.Size == 0 {
		s.metrics.Upload("rejected", 0)
		return nil, ErrEmptyFile
	}
	if req.Size > s.maxSize {
		s.metrics.Upload("rejected", 0)
		return nil, &FileTooLargeError{Size: req.Size, MaxSize: s.maxSize}
	}

	body := bufio.NewReaderSize(req.Body, 512)
	contentType := s.contentType(req, body)
	if !slices.Contains(s.allowedTypes, contentType) {
		s.metrics.Upload("rejected", 0)
		return nil, &FileTypeError{ReceivedType: contentType}
	}

	fileName := s.fileName(req.FileName, contentType)
	prefix := storage.PrefixDecklists
	if req.Logo {
		prefix = storage.PrefixLogos
	}

	res, err := s.uploader.Upload(ctx, storage.UploadInput{
		Key:          prefix + fileName,
		ContentType:  contentType,
		CacheControl: storage.ImmutableCacheControl,
		Metadata: map[string]string{
			"uploadedAt":   s.now().UTC().Format(time.RFC3339),
			"originalName": req.FileName,
			"fileSize":     strconv.FormatInt(req.Size, 10),
		},
		Body: body,
		Size: req.Size,
	})
	if err != nil {
		s.metrics.Upload("error", 0)
		return nil, fmt.Errorf("store %s: %w", fileName, err)
	}

	s.quota.Record(ctx, store.CounterUploads)
	s.metrics.Upload("ok", req.Size)
	slog.Info("file uploaded", "file", fileName, "size", req.Size, "type", contentType)

	return &UploadResult{
		URL:          res.Location,
		FileName:     fileName,
		OriginalName: req.FileName,
		Size:         req.Size,
		UploadCount:  current + 1,
		Limit:        s.quota.Limit(store.CounterUploads),
	}, nil
}

// contentType trusts the part header unless it is missing or generic, then sniffs the content.
func (s *UploadService) contentType(req *UploadRequest, body *bufio.Reader) string {
	ct := req.ContentType
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mediaType
	}
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	head, _ := body.Peek(512)
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	return sniffed
}

// fileName builds "<unix millis>_<random>.<ext>", keeping the extension of the original name.
func (s *UploadService) fileName(original, contentType string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(original)), ".")
	if ext == "" {
		ext = extensionFor(contentType)
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d_%s.%s", s.now().UnixMilli(), random, ext)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "application/pdf":
		return "pdf"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}
