package settings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/blob"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// ReasonDemoMode is returned for writes other than app_name in demo mode.
const ReasonDemoMode = "This action is disabled in demo mode."

// imageTypes maps accepted upload extensions to the content type they are
// stored with. SVG is excluded because it can carry script.
var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".ico":  "image/x-icon",
}

// RepositoryPort defines data access methods for settings.
type RepositoryPort interface {
	All(ctx context.Context) (map[string]string, error)
	Find(ctx context.Context, key string) (string, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional setting writes.
type TxRepository interface {
	Find(ctx context.Context, key string) (string, bool, error)
	Upsert(ctx context.Context, key, value string) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Options configure a Service.
type Options struct {
	DemoMode bool
	Logger   *slog.Logger
}

// Service reads and writes options and keeps the published snapshot current.
type Service struct {
	repo     RepositoryPort
	blobs    blob.Store
	demo     bool
	logger   *slog.Logger
	snapshot atomic.Pointer[Snapshot]
}

// NewService builds Service instance. The snapshot holds the defaults until
// LoadAll runs.
func NewService(repo RepositoryPort, blobs blob.Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, blobs: blobs, demo: opts.DemoMode, logger: logger}
	initial := NewSnapshot(nil)
	s.snapshot.Store(&initial)
	return s
}

// LoadAll reads the settings table and publishes a new snapshot. A missing
// table leaves the defaults in place.
func (s *Service) LoadAll(ctx context.Context) (Snapshot, error) {
	stored, err := s.repo.All(ctx)
	if err != nil {
		if !db.IsUndefinedTable(err) {
			return Snapshot{}, fmt.Errorf("load settings: %w", err)
		}
		s.logger.Warn("settings table missing, using defaults")
		stored = nil
	}
	snap := NewSnapshot(stored)
	s.snapshot.Store(&snap)
	return snap, nil
}

// Snapshot returns the last published snapshot.
func (s *Service) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// DemoMode reports whether writes are restricted to app_name.
func (s *Service) DemoMode() bool {
	return s.demo
}

// Get returns the stored value of key, or its default.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	value, err := s.repo.Find(ctx, key)
	if err == nil {
		return value, nil
	}
	if errors.Is(err, shared.ErrNotFound) || db.IsUndefinedTable(err) {
		if def, ok := Defaults()[key]; ok {
			return def, nil
		}
		return "", shared.NotFound("setting", key)
	}
	return "", fmt.Errorf("get setting: %w", err)
}

// Set stores one option.
func (s *Service) Set(ctx context.Context, actor rbac.Principal, key, value string) (Snapshot, error) {
	return s.SetMany(ctx, actor, map[string]string{key: value})
}

// SetMany stores several text options in one transaction. File options must
// go through SetFile.
func (s *Service) SetMany(ctx context.Context, actor rbac.Principal, values map[string]string) (Snapshot, error) {
	if len(values) == 0 {
		return Snapshot{}, shared.NewValidationError("settings", "At least one setting is required.")
	}
	values = maps.Clone(values)
	keys := slices.Sorted(maps.Keys(values))
	for _, key := range keys {
		if err := s.checkWritable(key); err != nil {
			return Snapshot{}, err
		}
		if IsFileKey(key) {
			return Snapshot{}, shared.NewValidationError(key, "The "+label(key)+" must be uploaded as a file.")
		}
		value, err := normalizeValue(key, values[key])
		if err != nil {
			return Snapshot{}, err
		}
		values[key] = value
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, key := range keys {
			if err := tx.Upsert(ctx, key, values[key]); err != nil {
				return err
			}
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   shared.AuditUpdate,
			Entity:   "setting",
			EntityID: strings.Join(keys, ","),
			Meta:     map[string]any{"settings": values},
		})
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("save settings: %w", err)
	}
	return s.LoadAll(ctx)
}

// SetFile stores an uploaded image for a file option and records its URL.
// The replaced blob is removed when this store owns it.
// The stored content type follows the extension; the client's header is ignored.
func (s *Service) SetFile(ctx context.Context, actor rbac.Principal, key, filename string, r io.Reader, _ string) (Snapshot, error) {
	if err := s.checkWritable(key); err != nil {
		return Snapshot{}, err
	}
	if !IsFileKey(key) {
		return Snapshot{}, shared.NewValidationError(key, "The "+label(key)+" does not accept files.")
	}
	ext := strings.ToLower(path.Ext(filename))
	storedType, ok := imageTypes[ext]
	if !ok {
		return Snapshot{}, shared.NewValidationError(key, "The "+label(key)+" must be an image.")
	}
	if s.blobs == nil {
		return Snapshot{}, errors.New("settings: no blob store configured")
	}

	url, err := s.blobs.Put(ctx, filename, r, storedType)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store %s: %w", key, err)
	}

	var previous string
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, _, err := tx.Find(ctx, key)
		if err != nil {
			return err
		}
		previous = old
		if err := tx.Upsert(ctx, key, url); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   shared.AuditUpdate,
			Entity:   "setting",
			EntityID: key,
			Meta:     map[string]any{"from": old, "to": url},
		})
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, url); delErr != nil {
			s.logger.Warn("remove orphaned upload", slog.String("url", url), slog.Any("error", delErr))
		}
		return Snapshot{}, fmt.Errorf("save %s: %w", key, err)
	}
	if previous != "" && previous != url && s.blobs.Owns(previous) {
		if err := s.blobs.Delete(ctx, previous); err != nil {
			s.logger.Warn("remove replaced upload", slog.String("url", previous), slog.Any("error", err))
		}
	}
	return s.LoadAll(ctx)
}

func (s *Service) checkWritable(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if s.demo && key != KeyAppName {
		return shared.Forbidden(ReasonDemoMode)
	}
	return nil
}

func checkKey(key string) error {
	if !keyPattern.MatchString(key) {
		return shared.NewValidationError("key", "The setting name format is invalid.")
	}
	return nil
}

func normalizeValue(key, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch key {
	case KeyAppName:
		if value == "" {
			return "", shared.NewValidationError(key, "The app name field is required.")
		}
		if len(value) > 255 {
			return "", shared.NewValidationError(key, "The app name field must not be greater than 255 characters.")
		}
	case KeyDefaultPagination:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > shared.MaxPerPage {
			return "", shared.NewValidationError(key, fmt.Sprintf("The default pagination field must be between 1 and %d.", shared.MaxPerPage))
		}
		value = strconv.Itoa(n)
	default:
		if len(value) > maxValueLength {
			return "", shared.NewValidationError(key, fmt.Sprintf("The %s field must not be greater than %d characters.", label(key), maxValueLength))
		}
	}
	return value, nil
}

func label(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
