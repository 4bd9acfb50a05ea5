package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/interfaces"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

// ManifestStorage implements the ManifestStorage interface for Badger.
// Entries are global across runs and never deleted automatically.
type ManifestStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewManifestStorage creates a new ManifestStorage instance
func NewManifestStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ManifestStorage {
	return &ManifestStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ManifestStorage) UpsertEntry(ctx context.Context, entry *models.ManifestEntry) error {
	if entry.Key == "" {
		return fmt.Errorf("manifest entry key is required")
	}
	entry.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(entry.Key, entry); err != nil {
		return fmt.Errorf("failed to upsert manifest entry: %w", err)
	}
	return nil
}

func (s *ManifestStorage) GetEntry(ctx context.Context, key string) (*models.ManifestEntry, error) {
	var entry models.ManifestEntry
	if err := s.db.Store().Get(key, &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		s.logger.Warn().Err(err).Str("key", key).Msg("Manifest read failed, treating entry as unknown")
		return nil, nil
	}
	return &entry, nil
}

func (s *ManifestStorage) CountEntries(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.ManifestEntry{}, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Manifest count failed, degrading to zero")
		return 0, nil
	}
	return int(count), nil
}
