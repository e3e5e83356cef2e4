package store

import (
	"context"
	"database/sql"
	"errors"
)

// Well-known settings keys.
const (
	SettingGlobalLink        = "global_link"
	SettingGlobalButtonLabel = "global_button_label"
	SettingWelcomePostID     = "welcome_post_id"
)

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return strOrEmpty(v), true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(key, value) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}
