package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxFilenameLength = 255
	downloadURLTTL    = time.Hour
)

var ErrInvalidUpload = errors.New("invalid upload")

// AllowedContentTypes is the whitelist of attachment types.
var AllowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"text/plain":      true,
	"text/markdown":   true,
	"application/zip": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
}

// Upload describes a presigned attachment upload
type Upload struct {
	UploadURL string    `json:"upload_url"`
	FileKey   string    `json:"file_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Uploads issues attachment uploads and download redirects on top of a Service.
type Uploads struct {
	storage Service
	ttl     time.Duration
}

// NewUploads creates an Uploads helper. ttl bounds the validity of upload URLs.
func NewUploads(storage Service, ttl time.Duration) *Uploads {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Uploads{storage: storage, ttl: ttl}
}

// ValidateFilename checks if filename is safe and valid
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: filename cannot be empty", ErrInvalidUpload)
	}
	if len(filename) > MaxFilenameLength {
		return fmt.Errorf("%w: filename too long (max %d characters)", ErrInvalidUpload, MaxFilenameLength)
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return fmt.Errorf("%w: filename contains invalid characters", ErrInvalidUpload)
	}
	if filepath.Ext(filename) == "" {
		return fmt.Errorf("%w: filename must have an extension", ErrInvalidUpload)
	}
	return nil
}

// ValidateContentType checks if content type is allowed
func ValidateContentType(contentType string) error {
	if !AllowedContentTypes[contentType] {
		return fmt.Errorf("%w: content type %q is not allowed", ErrInvalidUpload, contentType)
	}
	return nil
}

// NewUpload validates the file and presigns a PUT under prefix.
func (u *Uploads) NewUpload(ctx context.Context, prefix, filename, contentType string) (*Upload, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}
	if err := ValidateContentType(contentType); err != nil {
		return nil, err
	}

	key := path.Join(prefix, uuid.New().String()+"-"+filename)
	uploadURL, err := u.storage.GeneratePresignedUploadURL(ctx, key, contentType, u.ttl)
	if err != nil {
		return nil, err
	}

	return &Upload{
		UploadURL: uploadURL,
		FileKey:   key,
		ExpiresAt: time.Now().Add(u.ttl),
	}, nil
}

// DownloadURL presigns a short-lived GET for key.
func (u *Uploads) DownloadURL(ctx context.Context, key string) (string, error) {
	return u.storage.GeneratePresignedDownloadURL(ctx, key, downloadURLTTL)
}
