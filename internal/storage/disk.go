package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskUploader stores files under a local directory, served back by the web server. It is the
// default when no object storage is configured.
type DiskUploader struct {
	root          string
	publicBaseURL string
}

func NewDiskUploader(root, publicBaseURL string) (*DiskUploader, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskUploader{root: root, publicBaseURL: publicBaseURL}, nil
}

func (u *DiskUploader) Root() string {
	return u.root
}

func (u *DiskUploader) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	path, err := u.path(in.Key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())

	hash := md5.New()
	if _, err := io.Copy(io.MultiWriter(f, hash), in.Body); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write %s: %w", in.Key, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return nil, err
	}

	return &UploadResult{
		Key:      in.Key,
		Location: u.GetPublicURL(in.Key),
		ETag:     hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

func (u *DiskUploader) Delete(_ context.Context, key string) error {
	path, err := u.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (u *DiskUploader) GetPublicURL(key string) string {
	return publicURL(u.publicBaseURL, key)
}

func (u *DiskUploader) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if key == "" || strings.HasSuffix(key, "/") || clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(u.root, filepath.FromSlash(clean)), nil
}
