// ABOUTME: Key/value settings store for the sync configuration
// ABOUTME: Loads and saves the singleton Settings record one key per row
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/harperreed/gappsync/models"
)

// LoadSettings reads all settings, applying defaults for missing keys.
func LoadSettings(db *sql.DB) (*models.Settings, error) {
	rows, err := db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	settings := models.DefaultSettings()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		if err := applySetting(settings, key, value); err != nil {
			return nil, err
		}
	}

	return settings, rows.Err()
}

func applySetting(s *models.Settings, key, value string) error {
	switch key {
	case models.SettingDomain:
		s.Domain = value
	case models.SettingOAuthEmail:
		s.OAuthEmail = value
	case models.SettingOAuthKey:
		s.OAuthKey = value
	case models.SettingOAuthSecret:
		s.OAuthSecret = value
	case models.SettingGroup:
		s.Group = value
	case models.SettingBackend:
		if value != "" {
			s.Backend = value
		}
	case models.SettingProfileBaseURL:
		s.ProfileBaseURL = value
	case models.SettingMaxProcessed:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s setting %q: %w", key, value, err)
		}
		s.MaxProcessed = n
	case models.SettingProcessed:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s setting %q: %w", key, value, err)
		}
		s.Processed = n
	case models.SettingLastSync:
		if value == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return fmt.Errorf("invalid %s setting %q: %w", key, value, err)
		}
		s.LastSync = &t
	}
	return nil
}

// SaveSetting writes a single key.
func SaveSetting(db *sql.DB, key, value string) error {
	return saveSetting(context.Background(), db, key, value)
}

// SaveSettings writes the configurable keys. Run statistics are left alone.
func SaveSettings(db *sql.DB, s *models.Settings) error {
	values := map[string]string{
		models.SettingDomain:         s.Domain,
		models.SettingOAuthEmail:     s.OAuthEmail,
		models.SettingOAuthKey:       s.OAuthKey,
		models.SettingOAuthSecret:    s.OAuthSecret,
		models.SettingGroup:          s.Group,
		models.SettingMaxProcessed:   strconv.Itoa(s.MaxProcessed),
		models.SettingBackend:        s.Backend,
		models.SettingProfileBaseURL: s.ProfileBaseURL,
	}

	ctx := context.Background()
	return withTx(ctx, db, func(tx *sql.Tx) error {
		for key, value := range values {
			if err := saveSetting(ctx, tx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteSettings removes every key.
func DeleteSettings(db *sql.DB) error {
	if _, err := db.Exec(`DELETE FROM settings`); err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	return nil
}

func saveSetting(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}
