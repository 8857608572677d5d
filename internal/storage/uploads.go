package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"chat-service/internal/models"
	"chat-service/internal/services"
)

var (
	ErrDisabled        = errors.New("object storage is not configured")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrInvalidRequest  = errors.New("invalid upload request")
)

const (
	KeyPrefix       = "chat-media"
	DefaultMaxBytes = 100 * 1024 * 1024
	DefaultTTL      = time.Hour
)

var allowedTypes = map[string]models.AttachmentKind{
	"image/jpeg":      models.AttachmentImage,
	"image/jpg":       models.AttachmentImage,
	"image/png":       models.AttachmentImage,
	"image/gif":       models.AttachmentImage,
	"image/webp":      models.AttachmentImage,
	"video/mp4":       models.AttachmentVideo,
	"video/webm":      models.AttachmentVideo,
	"video/quicktime": models.AttachmentVideo,
	"video/x-msvideo": models.AttachmentVideo,
}

// Presigner issues time-limited upload URLs for object keys.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (string, error)
}

// UploadRequest describes the file a client wants to upload.
type UploadRequest struct {
	FileName string `json:"fileName" binding:"required"`
	FileType string `json:"fileType" binding:"required"`
	FileSize int64  `json:"fileSize" binding:"required"`
}

// PresignedUpload is returned to the client, which PUTs the file to UploadURL
// and attaches PublicURL to its message.
type PresignedUpload struct {
	UploadURL string                `json:"uploadUrl"`
	PublicURL string                `json:"publicUrl"`
	FileName  string                `json:"fileName"`
	Key       string                `json:"key"`
	Kind      models.AttachmentKind `json:"kind"`
	ExpiresAt time.Time             `json:"expiresAt"`
}

// Uploader validates upload requests and presigns them.
type Uploader struct {
	presigner Presigner
	publicURL string
	maxBytes  int64
	ttl       time.Duration
	now       func() time.Time
	newID     func() string
}

// NewUploader constructs an Uploader. A nil presigner leaves uploads disabled.
func NewUploader(presigner Presigner, publicBaseURL string, maxBytes int64, ttl time.Duration) *Uploader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Uploader{
		presigner: presigner,
		publicURL: strings.TrimSuffix(publicBaseURL, "/"),
		maxBytes:  maxBytes,
		ttl:       ttl,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Enabled reports whether a presigner is configured.
func (u *Uploader) Enabled() bool {
	return u != nil && u.presigner != nil
}

// Validate checks the MIME type against the allow-list and the size ceiling.
func (u *Uploader) Validate(req UploadRequest) (models.AttachmentKind, error) {
	if strings.TrimSpace(req.FileName) == "" {
		return "", fmt.Errorf("%w: file name is required", ErrInvalidRequest)
	}
	if req.FileSize <= 0 {
		return "", fmt.Errorf("%w: file size must be positive", ErrInvalidRequest)
	}
	kind, ok := allowedTypes[strings.ToLower(strings.TrimSpace(req.FileType))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, req.FileType)
	}
	if req.FileSize > u.maxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, req.FileSize, u.maxBytes)
	}
	return kind, nil
}

// Presign validates req and returns a presigned PUT URL for a fresh key.
func (u *Uploader) Presign(ctx context.Context, req UploadRequest) (PresignedUpload, error) {
	if !u.Enabled() {
		return PresignedUpload{}, ErrDisabled
	}
	kind, err := u.Validate(req)
	if err != nil {
		return PresignedUpload{}, err
	}

	now := u.now()
	key := ObjectKey(now, u.newID(), req.FileName, req.FileType)
	contentType := strings.ToLower(strings.TrimSpace(req.FileType))
	uploadURL, err := u.presigner.PresignPut(ctx, key, contentType, req.FileSize, u.ttl)
	if err != nil {
		return PresignedUpload{}, fmt.Errorf("presign upload: %w: %w", services.ErrUpstream, err)
	}

	return PresignedUpload{
		UploadURL: uploadURL,
		PublicURL: u.publicURL + "/" + key,
		FileName:  req.FileName,
		Key:       key,
		Kind:      kind,
		ExpiresAt: now.Add(u.ttl),
	}, nil
}

// ObjectKey builds chat-media/<unix-ms>-<id><ext>. The extension comes from
// the file name, falling back to the MIME type.
func ObjectKey(now time.Time, id, fileName, fileType string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, "\\", "/"))))
	if ext == "" || ext == "." {
		ext = ""
		if mt := mimetype.Lookup(strings.ToLower(fileType)); mt != nil {
			ext = mt.Extension()
		}
	}
	return fmt.Sprintf("%s/%d-%s%s", KeyPrefix, now.UnixMilli(), id, ext)
}
