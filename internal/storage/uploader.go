package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
)

const (
	PrefixDecklists = "decklists/"
	PrefixLogos     = "logos/"

	// Stored file names are unique, so objects can be cached forever.
	ImmutableCacheControl = "public, max-age=31536000"
)

type UploadInput struct {
	Key          string
	ContentType  string
	CacheControl string
	Metadata     map[string]string
	Body         io.Reader
	Size         int64
}

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

type FileUploader interface {
	Upload(ctx context.Context, in UploadInput) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// publicURL joins key onto base, keeping exactly one slash between them.
func publicURL(base, key string) string {
	if base == "" || key == "" {
		return ""
	}
	segments := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(segments, "/")
}
