package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func (s *Store) CreateTrackingLink(ctx context.Context, name, trackingID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tracking_links(name, tracking_id, clicks, starts, unique_users, created_at)
		 VALUES(?,?,0,0,0,?)`,
		name, trackingID, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetTrackingLink(ctx context.Context, trackingID string) (TrackingLink, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, tracking_id, clicks, starts, unique_users, created_at
		 FROM tracking_links WHERE tracking_id = ?`, trackingID)
	var (
		l       TrackingLink
		created int64
	)
	err := row.Scan(&l.ID, &l.Name, &l.TrackingID, &l.Clicks, &l.Starts, &l.UniqueUsers, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return TrackingLink{}, ErrNotFound
	}
	if err != nil {
		return TrackingLink{}, err
	}
	l.CreatedAt = time.Unix(created, 0)
	return l, nil
}

func (s *Store) ListTrackingLinks(ctx context.Context) ([]TrackingLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, tracking_id, clicks, starts, unique_users, created_at
		 FROM tracking_links ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrackingLink
	for rows.Next() {
		var (
			l       TrackingLink
			created int64
		)
		if err := rows.Scan(&l.ID, &l.Name, &l.TrackingID, &l.Clicks, &l.Starts, &l.UniqueUsers, &created); err != nil {
			return nil, err
		}
		l.CreatedAt = time.Unix(created, 0)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTrackingLink(ctx context.Context, trackingID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tracking_links WHERE tracking_id = ?`, trackingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordTrackingStart counts a /start arriving through a tracking link.
// Returns true when this user is new for the link, ErrNotFound when the link
// does not exist (stale deep-links keep circulating after deletion).
func (s *Store) RecordTrackingStart(ctx context.Context, trackingID string, userID int64) (bool, error) {
	var known int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracking_links WHERE tracking_id = ?`,
		trackingID).Scan(&known); err != nil {
		return false, err
	}
	if known == 0 {
		return false, ErrNotFound
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracking_users WHERE tracking_id = ? AND user_id = ?`,
		trackingID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}

	if exists > 0 {
		_, err = s.db.ExecContext(ctx,
			`UPDATE tracking_links SET starts = starts + 1 WHERE tracking_id = ?`, trackingID)
		return false, err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tracking_users(tracking_id, user_id, first_interaction) VALUES(?,?,?)`,
		trackingID, userID, time.Now().Unix()); err != nil {
		return false, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE tracking_links SET starts = starts + 1, unique_users = unique_users + 1
		 WHERE tracking_id = ?`, trackingID)
	return true, err
}
