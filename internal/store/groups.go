package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func (s *Store) UpsertGroup(ctx context.Context, chatID int64, title string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups(chat_id, title, enabled, created_at) VALUES(?,?,1,?)
		 ON CONFLICT(chat_id) DO UPDATE SET title = excluded.title`,
		chatID, nullStr(title), time.Now().Unix())
	return err
}

func (s *Store) GetGroup(ctx context.Context, chatID int64) (Group, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, title, enabled, created_at FROM groups WHERE chat_id = ?`, chatID)
	var (
		g       Group
		title   sql.NullString
		enabled int
		created int64
	)
	err := row.Scan(&g.ID, &g.ChatID, &title, &enabled, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, err
	}
	g.Title = strOrEmpty(title)
	g.Enabled = enabled != 0
	g.CreatedAt = time.Unix(created, 0)
	return g, nil
}

func (s *Store) SetGroupEnabled(ctx context.Context, chatID int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE groups SET enabled = ? WHERE chat_id = ?`, boolInt(enabled), chatID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, title, enabled, created_at FROM groups ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		var (
			g       Group
			title   sql.NullString
			enabled int
			created int64
		)
		if err := rows.Scan(&g.ID, &g.ChatID, &title, &enabled, &created); err != nil {
			return nil, err
		}
		g.Title = strOrEmpty(title)
		g.Enabled = enabled != 0
		g.CreatedAt = time.Unix(created, 0)
		out = append(out, g)
	}
	return out, rows.Err()
}
