package storage

import (
	"context"
	"database/sql"
	"errors"
)

func (s *Store) GetSetting(ctx context.Context, guildID, key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM guild_settings WHERE guild_id = ? AND key = ?`), guildID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fallback, nil
		}
		return "", err
	}
	return value, nil
}

func (s *Store) SetSetting(ctx context.Context, guildID, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO guild_settings (guild_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(guild_id, key) DO UPDATE SET value = excluded.value
	`), guildID, key, value)
	return err
}

// ListSettings returns every guild setting whose key starts with prefix.
func (s *Store) ListSettings(ctx context.Context, guildID, prefix string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT key, value FROM guild_settings
		WHERE guild_id = ? AND substr(key, 1, ?) = ?
	`), guildID, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// GuildsWithSetting lists guild ids that have a non-empty value for key.
func (s *Store) GuildsWithSetting(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT guild_id, value FROM guild_settings
		WHERE key = ? AND value <> '' AND value <> '0'
	`), key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	guilds := make(map[string]string)
	for rows.Next() {
		var guildID, value string
		if err := rows.Scan(&guildID, &value); err != nil {
			return nil, err
		}
		guilds[guildID] = value
	}
	return guilds, rows.Err()
}

func (s *Store) GetUserSetting(ctx context.Context, userID, key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM user_settings WHERE user_id = ? AND key = ?`), userID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fallback, nil
		}
		return "", err
	}
	return value, nil
}

func (s *Store) SetUserSetting(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO user_settings (user_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value
	`), userID, key, value)
	return err
}

func (s *Store) DeleteSetting(ctx context.Context, guildID, key string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM guild_settings WHERE guild_id = ? AND key = ?`), guildID, key)
	return err
}
