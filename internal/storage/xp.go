package storage

import (
	"context"
	"database/sql"
	"errors"
)

type XPRecord struct {
	GuildID string
	UserID  string
	XP      int64
}

// AddXP increments the user's total in one statement and returns the new total.
func (s *Store) AddXP(ctx context.Context, guildID, userID string, amount int64) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO xp_records (guild_id, user_id, xp) VALUES (?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET xp = xp_records.xp + excluded.xp
		RETURNING xp
	`), guildID, userID, amount).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) GetXP(ctx context.Context, guildID, userID string) (int64, error) {
	var xp int64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT xp FROM xp_records WHERE guild_id = ? AND user_id = ?`), guildID, userID).Scan(&xp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return xp, nil
}

func (s *Store) TopXP(ctx context.Context, guildID string, offset, limit int) ([]XPRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT guild_id, user_id, xp FROM xp_records
		WHERE guild_id = ?
		ORDER BY xp DESC, user_id ASC
		LIMIT ? OFFSET ?
	`), guildID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []XPRecord
	for rows.Next() {
		var record XPRecord
		if err := rows.Scan(&record.GuildID, &record.UserID, &record.XP); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) CountXP(ctx context.Context, guildID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM xp_records WHERE guild_id = ?`), guildID).Scan(&count)
	return count, err
}
