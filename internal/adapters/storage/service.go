// Package storage provides S3-compatible object storage for WhatsApp media.
// The adapter is domain-agnostic; the photo bucket and public URL scheme come
// from configuration.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrStorageDisabled is returned when no object store is configured.
var ErrStorageDisabled = errors.New("object storage is not configured")

// PresignedURL contains the URL and metadata for a presigned download.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service defines the interface for object storage operations.
type Service interface {
	// PutPhoto stores attachment bytes under the given key in the photo
	// bucket and returns a public URL for the object.
	PutPhoto(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// GenerateDownloadURL creates a presigned URL for downloading a stored object.
	GenerateDownloadURL(ctx context.Context, fileKey string) (*PresignedURL, error)

	// DownloadFile streams a stored object.
	// The caller is responsible for closing the returned io.ReadCloser.
	DownloadFile(ctx context.Context, fileKey string) (io.ReadCloser, error)

	// DeleteObject removes an object from the photo bucket.
	DeleteObject(ctx context.Context, fileKey string) error

	// EnsureBucketExists creates the photo bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context) error

	// ValidateContentType checks if the content type is allowed.
	ValidateContentType(contentType string) error
}

// Disabled is a Service used when MinIO is not configured. Every operation
// fails with ErrStorageDisabled, which the media pipeline logs and absorbs.
type Disabled struct{}

func (Disabled) PutPhoto(context.Context, string, []byte, string) (string, error) {
	return "", ErrStorageDisabled
}

func (Disabled) GenerateDownloadURL(context.Context, string) (*PresignedURL, error) {
	return nil, ErrStorageDisabled
}

func (Disabled) DownloadFile(context.Context, string) (io.ReadCloser, error) {
	return nil, ErrStorageDisabled
}

func (Disabled) DeleteObject(context.Context, string) error { return ErrStorageDisabled }

func (Disabled) EnsureBucketExists(context.Context) error { return nil }

func (Disabled) ValidateContentType(string) error { return ErrStorageDisabled }
