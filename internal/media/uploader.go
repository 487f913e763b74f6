// Package media stores images posted by the editor as data URIs and returns
// their public URLs.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nexonsite/internal/blob"
)

// DefaultFolder is the key prefix for uploaded post images.
const DefaultFolder = "blog_images"

// DefaultMaxBytes bounds a decoded upload.
const DefaultMaxBytes = 10 << 20

var (
	ErrInvalidDataURI  = errors.New("invalid data URI")
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrTooLarge        = errors.New("upload too large")
)

var extensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/avif":    ".avif",
	"image/svg+xml": ".svg",
}

// DataURI is a decoded data: URL.
type DataURI struct {
	MediaType string
	Data      []byte
}

// ParseDataURI decodes "data:<mediatype>[;param...][;base64],<payload>".
// Non-base64 payloads are percent-decoded.
func ParseDataURI(s string) (DataURI, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURI)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURI)
	}
	params := strings.Split(header, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))
	if mediaType == "" {
		mediaType = "text/plain"
	}
	isBase64 := len(params) > 1 && strings.EqualFold(strings.TrimSpace(params[len(params)-1]), "base64")

	var data []byte
	var err error
	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(strings.TrimRight(payload, "\r\n"))
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=\r\n"))
		}
	} else {
		var text string
		text, err = url.PathUnescape(payload)
		data = []byte(text)
	}
	if err != nil {
		return DataURI{}, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return DataURI{MediaType: mediaType, Data: data}, nil
}

// Extension returns the file extension used for an accepted image type.
func Extension(mediaType string) (string, bool) {
	ext, ok := extensions[strings.ToLower(mediaType)]
	return ext, ok
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithFolder sets the key prefix.
func WithFolder(folder string) Option {
	return func(u *Uploader) { u.folder = strings.Trim(folder, "/") }
}

// WithMaxBytes bounds decoded uploads.
func WithMaxBytes(n int) Option {
	return func(u *Uploader) { u.maxBytes = n }
}

// WithLogger sets the uploader logger.
func WithLogger(l *zap.Logger) Option {
	return func(u *Uploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// WithKeyGenerator overrides the random object name generator.
func WithKeyGenerator(fn func() string) Option {
	return func(u *Uploader) { u.newName = fn }
}

// Uploader writes images into a blob store under a single folder.
type Uploader struct {
	store    blob.Store
	folder   string
	maxBytes int
	logger   *zap.Logger
	newName  func() string
}

// NewUploader returns an uploader writing to store.
func NewUploader(store blob.Store, opts ...Option) *Uploader {
	u := &Uploader{
		store:    store,
		folder:   DefaultFolder,
		maxBytes: DefaultMaxBytes,
		logger:   zap.NewNop(),
		newName:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Result is what a successful upload reports.
type Result struct {
	URL  string    `json:"url"`
	Info blob.Info `json:"-"`
}

// UploadDataURI decodes an image data URI and stores it under
// <folder>/<random><ext>. The URL is the store's public URL for the object,
// or a presigned URL when the store has none.
func (u *Uploader) UploadDataURI(ctx context.Context, dataURI string) (Result, error) {
	parsed, err := ParseDataURI(dataURI)
	if err != nil {
		return Result{}, err
	}
	ext, ok := Extension(parsed.MediaType)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, parsed.MediaType)
	}
	if len(parsed.Data) == 0 {
		return Result{}, fmt.Errorf("%w: empty payload", ErrInvalidDataURI)
	}
	if u.maxBytes > 0 && len(parsed.Data) > u.maxBytes {
		return Result{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(parsed.Data), u.maxBytes)
	}

	key := u.newName() + ext
	if u.folder != "" {
		key = u.folder + "/" + key
	}
	info, err := u.store.Put(ctx, key, bytes.NewReader(parsed.Data), blob.PutOptions{
		ContentType: parsed.MediaType,
		Metadata:    map[string]string{"source": "editor-upload"},
	})
	if err != nil {
		return Result{}, fmt.Errorf("store %s: %w", key, err)
	}
	link := info.URL
	if link == "" {
		link, err = u.store.PresignURL(ctx, key, blob.SignedURLOptions{})
		if err != nil {
			return Result{}, fmt.Errorf("url for %s: %w", key, err)
		}
	}
	u.logger.Info("media uploaded",
		zap.String("key", key),
		zap.String("content_type", parsed.MediaType),
		zap.Int64("size", info.Size),
		zap.String("driver", string(u.store.Driver())))
	return Result{URL: link, Info: info}, nil
}
