package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func (s *Store) CreatePost(ctx context.Context, p Post) (int64, error) {
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts(title, content_kind, media_ref, text, link_override, button_label, created_at)
		 VALUES(?,?,?,?,?,?,?)`,
		nullStr(p.Title), string(p.Kind), nullStr(p.MediaRef), nullStr(p.Text),
		nullStr(p.LinkOverride), nullStr(p.ButtonLabel), created.Unix(),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO post_stats(post_id, delivered_count) VALUES(?, 0)`, id)
	return id, err
}

func (s *Store) GetPost(ctx context.Context, id int64) (Post, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, content_kind, media_ref, text, link_override, button_label, created_at
		 FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, false, nil
	}
	if err != nil {
		return Post{}, false, err
	}
	return p, true, nil
}

func (s *Store) ListPosts(ctx context.Context, limit, offset int) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content_kind, media_ref, text, link_override, button_label, created_at
		 FROM posts ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CountPosts(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	return n, err
}

// DeletePost removes the post; stats, schedules and weekly schedules cascade.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementDelivered applies one fan-out's aggregate result in a single write.
func (s *Store) IncrementDelivered(ctx context.Context, postID int64, count int) error {
	if count <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE post_stats SET delivered_count = delivered_count + ?, last_delivered_at = ?
		 WHERE post_id = ?`,
		count, time.Now().Unix(), postID)
	return err
}

func (s *Store) GetPostStats(ctx context.Context, postID int64) (PostStats, error) {
	var (
		st   PostStats
		last sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT post_id, delivered_count, last_delivered_at FROM post_stats WHERE post_id = ?`,
		postID).Scan(&st.PostID, &st.DeliveredCount, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return PostStats{}, ErrNotFound
	}
	if err != nil {
		return PostStats{}, err
	}
	st.LastDeliveredAt = unixOrZero(last)
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(r rowScanner) (Post, error) {
	var (
		p       Post
		kind    string
		created int64

		title, media, text, link, btn sql.NullString
	)
	if err := r.Scan(&p.ID, &title, &kind, &media, &text, &link, &btn, &created); err != nil {
		return Post{}, err
	}
	p.Title = strOrEmpty(title)
	p.Kind = ContentKind(kind)
	p.MediaRef = strOrEmpty(media)
	p.Text = strOrEmpty(text)
	p.LinkOverride = strOrEmpty(link)
	p.ButtonLabel = strOrEmpty(btn)
	p.CreatedAt = time.Unix(created, 0)
	return p, nil
}
