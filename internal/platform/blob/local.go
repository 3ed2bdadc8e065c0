package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps blobs in a directory served under a URL prefix.
type LocalStore struct {
	dir    string
	prefix string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("platform/blob: local dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("platform/blob: create dir: %w", err)
	}
	prefix := "/" + strings.Trim(urlPrefix, "/")
	if prefix == "/" {
		prefix = "/uploads"
	}
	return &LocalStore{dir: dir, prefix: prefix}, nil
}

// Dir returns the directory files are written to.
func (s *LocalStore) Dir() string { return s.dir }

// Prefix returns the URL prefix blobs are served under.
func (s *LocalStore) Prefix() string { return s.prefix }

func (s *LocalStore) Put(ctx context.Context, filename string, r io.Reader, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := objectName(filename)
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("platform/blob: create: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("platform/blob: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("platform/blob: close: %w", err)
	}
	return s.prefix + "/" + name, nil
}

func (s *LocalStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, ok := s.name(url)
	if !ok {
		return fmt.Errorf("platform/blob: %q is not a local blob", url)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("platform/blob: remove: %w", err)
	}
	return nil
}

func (s *LocalStore) Owns(url string) bool {
	_, ok := s.name(url)
	return ok
}

func (s *LocalStore) name(url string) (string, bool) {
	name, found := strings.CutPrefix(url, s.prefix+"/")
	if !found || name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", false
	}
	return name, true
}
