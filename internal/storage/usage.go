package storage

import (
	"context"
	"time"
)

type CommandUsage struct {
	GuildID   string
	UserID    string
	Command   string
	CreatedAt time.Time
}

func (s *Store) AddCommandUsage(ctx context.Context, usage CommandUsage) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO command_usage (guild_id, user_id, command, created_at)
		VALUES (?, ?, ?, ?)
	`), usage.GuildID, usage.UserID, usage.Command, usage.CreatedAt.Unix())
	return err
}

func (s *Store) CommandCounts(ctx context.Context, guildID string, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT command, COUNT(*) FROM command_usage
		WHERE guild_id = ? AND created_at >= ?
		GROUP BY command
	`), guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var command string
		var count int
		if err := rows.Scan(&command, &count); err != nil {
			return nil, err
		}
		counts[command] = count
	}
	return counts, rows.Err()
}
