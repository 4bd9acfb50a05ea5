package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// Schedule drives creation of scheduled runs. Brands/Purchasers select the
// scope; an empty selection on one axis means "all" for that axis, but at
// least one axis must be non-empty.
type Schedule struct {
	ID         string    `json:"id"`
	Name       string    `json:"name" validate:"required"`
	CaseID     string    `json:"case_id" validate:"required"`
	Brands     []string  `json:"brands"`
	Purchasers []string  `json:"purchasers"`
	Cron       string    `json:"cron" validate:"required"`
	Timezone   string    `json:"timezone" validate:"required"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var scheduleValidator = validator.New()

// Validate validates the schedule against the supported timezone allow-list.
// Duplicate (cron, timezone) detection is enforced by the schedule service,
// which can see the full collection.
func (s *Schedule) Validate(supportedTimezones []string) error {
	if err := scheduleValidator.Struct(s); err != nil {
		return err
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(s.Cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if len(strings.Fields(s.Cron)) != 5 {
		return errors.New("invalid cron format: expected 5 fields")
	}

	supported := false
	for _, tz := range supportedTimezones {
		if tz == s.Timezone {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("timezone %q is not on the supported list", s.Timezone)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}

	if len(s.Brands) == 0 && len(s.Purchasers) == 0 {
		return errors.New("schedule requires at least one brand or purchaser selection")
	}

	return nil
}

// CronSpec returns the cron expression with its timezone prefix, in the form
// robfig/cron expects for per-entry timezones.
func (s *Schedule) CronSpec() string {
	return fmt.Sprintf("CRON_TZ=%s %s", s.Timezone, s.Cron)
}

// SameTrigger reports whether two schedules share an identical
// (cron, timezone) pair. Such pairs are rejected at create/update time.
func (s *Schedule) SameTrigger(other *Schedule) bool {
	return s.Cron == other.Cron && s.Timezone == other.Timezone
}
