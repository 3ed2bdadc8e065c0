// Package blob stores uploaded files behind a small interface so settings
// can replace logos and icons on local disk or in an S3 bucket.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Drivers understood by New.
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// Store persists blobs and addresses them by public URL.
type Store interface {
	// Put writes r under a fresh name derived from filename and returns its URL.
	Put(ctx context.Context, filename string, r io.Reader, contentType string) (string, error)
	// Delete removes the blob behind url. Missing blobs are not an error.
	Delete(ctx context.Context, url string) error
	// Owns reports whether url points into this store.
	Owns(url string) bool
}

// Config selects and configures a Store.
type Config struct {
	Driver string

	LocalDir       string
	LocalURLPrefix string

	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	S3PublicURL    string
}

// New builds the Store named by cfg.Driver.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverLocal:
		return NewLocalStore(cfg.LocalDir, cfg.LocalURLPrefix)
	case DriverS3:
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("platform/blob: unknown driver %q", cfg.Driver)
	}
}

// objectName derives a collision-free object name keeping the extension.
func objectName(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return uuid.NewString() + ext
}
