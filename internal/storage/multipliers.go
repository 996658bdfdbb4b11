package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

type Multiplier struct {
	ID        string
	GuildID   string
	Name      string
	Factor    int
	Start     string
	End       string
	CreatedAt time.Time
}

const multiplierColumns = `id, guild_id, name, multiplier, start_date, end_date, created_at`

// CreateMultiplier stores m under a new ULID. A name already used in the guild yields ErrDuplicate.
func (s *Store) CreateMultiplier(ctx context.Context, m Multiplier) (Multiplier, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.ID = ulid.MustNew(ulid.Timestamp(m.CreatedAt), ulid.DefaultEntropy()).String()

	result, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO multipliers (`+multiplierColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, name) DO NOTHING
	`), m.ID, m.GuildID, m.Name, m.Factor, m.Start, m.End, m.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return Multiplier{}, ErrDuplicate
		}
		return Multiplier{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Multiplier{}, err
	}
	if affected == 0 {
		return Multiplier{}, ErrDuplicate
	}
	return m, nil
}

func (s *Store) GetMultiplier(ctx context.Context, guildID, name string) (Multiplier, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+multiplierColumns+` FROM multipliers WHERE guild_id = ? AND name = ?
	`), guildID, name)
	m, err := scanMultiplier(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Multiplier{}, ErrNotFound
		}
		return Multiplier{}, err
	}
	return m, nil
}

// ListMultipliers returns the guild's multipliers in creation order.
func (s *Store) ListMultipliers(ctx context.Context, guildID string) ([]Multiplier, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+multiplierColumns+` FROM multipliers WHERE guild_id = ? ORDER BY id
	`), guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Multiplier
	for rows.Next() {
		m, err := scanMultiplier(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (s *Store) RenameMultiplier(ctx context.Context, guildID, oldName, newName string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM multipliers WHERE guild_id = ? AND name = ?`), guildID, newName).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return ErrDuplicate
	}

	result, err := tx.ExecContext(ctx, s.rebind(`UPDATE multipliers SET name = ? WHERE guild_id = ? AND name = ?`), newName, guildID, oldName)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// UpdateMultiplier rewrites factor and dates of the multiplier with m.ID.
func (s *Store) UpdateMultiplier(ctx context.Context, m Multiplier) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE multipliers SET multiplier = ?, start_date = ?, end_date = ?
		WHERE id = ? AND guild_id = ?
	`), m.Factor, m.Start, m.End, m.ID, m.GuildID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteMultiplier(ctx context.Context, guildID, name string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM multipliers WHERE guild_id = ? AND name = ?`), guildID, name)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMultiplier(row rowScanner) (Multiplier, error) {
	var m Multiplier
	var created int64
	if err := row.Scan(&m.ID, &m.GuildID, &m.Name, &m.Factor, &m.Start, &m.End, &created); err != nil {
		return Multiplier{}, err
	}
	m.CreatedAt = time.UnixMilli(created)
	return m, nil
}
