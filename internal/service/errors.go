package service

import (
	"errors"
	"fmt"

	"github.com/AdamBeresnev/bracket-manager/internal/store"
)

var (
	ErrNoWorkspace          = errors.New("no workspace in context")
	ErrConfirmationRequired = errors.New("changing the configuration clears winners and decklists")
	ErrTitleRequired        = errors.New("bracket title is required")
	ErrBracketIDRequired    = errors.New("bracket id is required")
	ErrBracketNotFound      = errors.New("bracket not found")
	ErrNoFile               = errors.New("no file uploaded")
	ErrEmptyFile            = errors.New("uploaded file is empty")
	ErrInvalidContentType   = errors.New("invalid content type")
)

// QuotaError is returned when a monthly counter has reached its limit.
type QuotaError struct {
	Counter   store.Counter
	Limit     int
	Current   int
	ResetDate string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("monthly %s limit reached (%d/%d)", e.Counter, e.Current, e.Limit)
}

type FileTooLargeError struct {
	Size    int64
	MaxSize int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file too large: %d bytes (max %d)", e.Size, e.MaxSize)
}

type FileTypeError struct {
	ReceivedType string
}

func (e *FileTypeError) Error() string {
	return fmt.Sprintf("file type %q is not allowed", e.ReceivedType)
}
