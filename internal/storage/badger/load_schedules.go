package badger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/common"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/interfaces"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

// ScheduleFile is the on-disk TOML shape of a seed schedule
type ScheduleFile struct {
	ID         string   `toml:"id"`
	Name       string   `toml:"name"`
	CaseID     string   `toml:"case_id"`
	Brands     []string `toml:"brands"`
	Purchasers []string `toml:"purchasers"`
	Cron       string   `toml:"cron"`
	Timezone   string   `toml:"timezone"`
	Enabled    bool     `toml:"enabled"`
}

// LoadSchedulesFromFiles loads seed schedules from TOML files in the given
// directory and upserts them into storage. Invalid files are logged and
// skipped; the loader is idempotent across restarts.
func LoadSchedulesFromFiles(ctx context.Context, storage interfaces.ScheduleStorage, dirPath string, supportedTimezones []string, logger arbor.ILogger) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		logger.Debug().Str("dir", dirPath).Msg("Schedules directory does not exist, skipping")
		return nil
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read schedules directory: %w", err)
	}

	existing, err := storage.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("failed to list existing schedules: %w", err)
	}

	loadedCount := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}

		filePath := filepath.Join(dirPath, entry.Name())
		tomlBytes, err := os.ReadFile(filePath)
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to read schedule file")
			continue
		}

		var scheduleFile ScheduleFile
		if err := toml.Unmarshal(tomlBytes, &scheduleFile); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to parse schedule TOML")
			continue
		}

		schedule := &models.Schedule{
			ID:         scheduleFile.ID,
			Name:       scheduleFile.Name,
			CaseID:     scheduleFile.CaseID,
			Brands:     scheduleFile.Brands,
			Purchasers: scheduleFile.Purchasers,
			Cron:       scheduleFile.Cron,
			Timezone:   scheduleFile.Timezone,
			Enabled:    scheduleFile.Enabled,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}
		if schedule.ID == "" {
			schedule.ID = common.NewScheduleID()
		}
		if schedule.CaseID == "" {
			schedule.CaseID = models.CaseFullPipeline
		}

		if err := schedule.Validate(supportedTimezones); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Schedule validation failed, skipping")
			continue
		}

		// No two schedules may share an identical (cron, timezone) pair
		duplicate := false
		for i := range existing {
			if existing[i].ID != schedule.ID && existing[i].SameTrigger(schedule) {
				duplicate = true
				break
			}
		}
		if duplicate {
			logger.Warn().
				Str("file", entry.Name()).
				Str("cron", schedule.Cron).
				Str("timezone", schedule.Timezone).
				Msg("Duplicate (cron, timezone) pair, skipping")
			continue
		}

		// Preserve the original creation timestamp on re-load
		for i := range existing {
			if existing[i].ID == schedule.ID {
				schedule.CreatedAt = existing[i].CreatedAt
				break
			}
		}

		if err := storage.SaveSchedule(ctx, schedule); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to save schedule")
			continue
		}

		existing = append(existing, *schedule)
		loadedCount++
	}

	if loadedCount > 0 {
		logger.Info().Int("count", loadedCount).Str("dir", dirPath).Msg("Schedules loaded from files")
	}

	return nil
}
