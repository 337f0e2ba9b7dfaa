package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vvka-141/deadpool/pkg/deadpool"
)

// deadlineLayouts are the accepted deadline formats, most precise first.
var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// SettingsService reads and writes the game settings in the config table.
type SettingsService struct {
	access deadpool.DataAccess
}

// NewSettingsService creates a SettingsService.
// Panics if access is nil.
func NewSettingsService(access deadpool.DataAccess) *SettingsService {
	if access == nil {
		panic("access cannot be nil")
	}
	return &SettingsService{access: access}
}

// Deadline returns the stored deadline. When none is stored yet, fallback
// (or deadpool.DefaultDeadline when empty) is stored first. Concurrent first
// readers all observe the same stored value.
func (s *SettingsService) Deadline(ctx context.Context, fallback string) (string, error) {
	value, err := s.configValue(ctx, deadpool.DeadlineConfigKey)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, deadpool.ErrNotFound) {
		return "", err
	}

	if fallback == "" {
		fallback = deadpool.DefaultDeadline
	}
	if _, err := s.access.Exec(ctx, queryInsertConfigDefault, deadpool.DeadlineConfigKey, fallback); err != nil {
		return "", err
	}

	// another reader may have stored its own fallback first
	return s.configValue(ctx, deadpool.DeadlineConfigKey)
}

// SetDeadline stores a new deadline. The value must be a date or date-time.
func (s *SettingsService) SetDeadline(ctx context.Context, value string) error {
	if _, err := ParseDeadline(value); err != nil {
		return err
	}
	_, err := s.access.Exec(ctx, queryUpsertConfig, deadpool.DeadlineConfigKey, value)
	return err
}

func (s *SettingsService) configValue(ctx context.Context, key string) (string, error) {
	var value string
	if err := s.access.QueryRow(ctx, queryConfigValue, key).Scan(&value); err != nil {
		return "", err
	}
	return value, nil
}

// ParseDeadline parses a deadline in one of the accepted formats. Values
// without a zone are read as UTC. Anything else matches deadpool.ErrValidation.
func ParseDeadline(value string) (time.Time, error) {
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("deadline %q is not a date (want YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS): %w", value, deadpool.ErrValidation)
}
