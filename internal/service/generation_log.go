package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/timmy/mockup-studio/internal/domain"
	"github.com/timmy/mockup-studio/internal/logger"
	"github.com/timmy/mockup-studio/internal/repository"
	"github.com/timmy/mockup-studio/internal/storage"
)

// LogRepository is the persistence the generation log needs.
type LogRepository interface {
	Create(ctx context.Context, entry *domain.LogEntry) error
	GetByIDs(ctx context.Context, ids []string) ([]domain.LogEntry, error)
	List(ctx context.Context, filter repository.LogFilter) ([]domain.LogEntry, int64, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// GenerationLogService is the durable log of generated images.
// Inline images are moved to object storage when one is configured.
type GenerationLogService struct {
	repo    LogRepository
	storage storage.ObjectStorage
	prefix  string
	owner   string
}

// GenerationLogConfig holds configuration for the generation log.
type GenerationLogConfig struct {
	// Prefix is the object key prefix for uploaded images.
	Prefix string
	// Owner is stamped on entries that carry no owner.
	Owner string
}

// NewGenerationLogService creates a generation log. objects may be nil, in
// which case data URLs are stored inline.
func NewGenerationLogService(repo LogRepository, objects storage.ObjectStorage, cfg *GenerationLogConfig) *GenerationLogService {
	if cfg == nil {
		cfg = &GenerationLogConfig{}
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "generation_log"
	}
	return &GenerationLogService{
		repo:    repo,
		storage: objects,
		prefix:  prefix,
		owner:   cfg.Owner,
	}
}

// Append uploads the entry's image (if any) and persists the entry.
// Failed entries are stored without an upload.
func (s *GenerationLogService) Append(ctx context.Context, entry domain.LogEntry) error {
	if entry.OwnerUID == "" {
		entry.OwnerUID = s.owner
	}

	if s.storage != nil && IsDataURL(entry.DataURL) {
		mimeType, data, err := DecodeDataURL(entry.DataURL)
		if err != nil {
			return fmt.Errorf("failed to decode image for %s: %w", entry.ID, err)
		}
		key := path.Join(s.prefix, entry.ID+extensionFor(mimeType))
		if err := s.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
			return fmt.Errorf("failed to upload image for %s: %w", entry.ID, err)
		}
		entry.DataURL = s.storage.GetURL(key)
		entry.PublicID = key
	}

	if err := s.repo.Create(ctx, &entry); err != nil {
		return fmt.Errorf("failed to save log entry %s: %w", entry.ID, err)
	}
	return nil
}

// List returns log entries newest first, with the total count before paging.
func (s *GenerationLogService) List(ctx context.Context, filter repository.LogFilter) ([]domain.LogEntry, int64, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes entries and their stored images. Storage failures are
// logged and do not keep the rows from being deleted.
func (s *GenerationLogService) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	if s.storage != nil {
		entries, err := s.repo.GetByIDs(ctx, ids)
		if err != nil {
			return 0, fmt.Errorf("failed to load log entries: %w", err)
		}
		for _, e := range entries {
			if e.PublicID == "" {
				continue
			}
			if err := s.storage.Delete(ctx, e.PublicID); err != nil {
				logger.FromContext(ctx).WithField("public_id", e.PublicID).WithError(err).Warn("Failed to delete stored image")
			}
		}
	}

	n, err := s.repo.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete log entries: %w", err)
	}
	return n, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
