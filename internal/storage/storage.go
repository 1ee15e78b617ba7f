// Package storage stores post images and profile pictures in an S3-compatible
// object store addressed by opaque keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned by Get for unknown keys.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the binary store used for media.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Key prefixes.
const (
	PostImagePrefix      = "posts"
	ProfilePicturePrefix = "profiles"
)

// ObjectKey builds a collision-free key under prefix, keeping the extension
// of the uploaded file name.
func ObjectKey(prefix string, ownerID uint, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%d/%s%s", prefix, ownerID, uuid.New().String(), ext)
}

// DetectImageType sniffs content and returns its MIME type when it is an
// accepted image format.
func DetectImageType(content []byte) (string, bool) {
	contentType := http.DetectContentType(content)
	switch contentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return contentType, true
	default:
		return contentType, false
	}
}
