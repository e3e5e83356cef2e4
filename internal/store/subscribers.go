package store

import (
	"context"
	"database/sql"
	"time"
)

// UpsertSubscriber registers a user on first contact and reactivates them on
// any later contact. This is the only path that flips a subscriber back to
// active after a delivery marked them unreachable.
func (s *Store) UpsertSubscriber(ctx context.Context, userID int64, firstName, username string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers(user_id, first_name, username, is_active, joined_at)
		 VALUES(?,?,?,1,?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     first_name = excluded.first_name,
		     username = excluded.username,
		     is_active = 1`,
		userID, nullStr(firstName), nullStr(username), time.Now().Unix())
	return err
}

func (s *Store) SetActive(ctx context.Context, userID int64, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscribers SET is_active = ? WHERE user_id = ?`,
		boolInt(active), userID)
	return err
}

// ListActive enumerates active subscribers in stable pages.
// Ordering by user_id keeps pagination consistent while rows flip inactive
// mid fan-out.
func (s *Store) ListActive(ctx context.Context, limit, offset int) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, first_name, username, is_active, joined_at
		 FROM subscribers WHERE is_active = 1
		 ORDER BY user_id ASC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		var (
			sub         Subscriber
			first, user sql.NullString
			active      int
			joined      int64
		)
		if err := rows.Scan(&sub.UserID, &first, &user, &active, &joined); err != nil {
			return nil, err
		}
		sub.FirstName = strOrEmpty(first)
		sub.Username = strOrEmpty(user)
		sub.Active = active != 0
		sub.JoinedAt = time.Unix(joined, 0)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Store) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscribers WHERE is_active = 1`).Scan(&n)
	return n, err
}

func (s *Store) CountSubscribers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&n)
	return n, err
}

func (s *Store) CountJoinedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscribers WHERE is_active = 1 AND joined_at >= ?`,
		since.Unix()).Scan(&n)
	return n, err
}
