package store

import (
	"context"
	"database/sql"
	"time"
)

// ---- one-off schedules ----

func (s *Store) CreateOneOff(ctx context.Context, postID int64, nextRunAt time.Time, repeat time.Duration) (int64, error) {
	var repeatSec any
	if repeat > 0 {
		repeatSec = int64(repeat / time.Second)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules(post_id, next_run_at, repeat_interval, is_paused, is_terminated)
		 VALUES(?,?,?,0,0)`,
		postID, nextRunAt.Unix(), repeatSec)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListDueOneOff returns every live one-off schedule whose fire time has
// arrived. Pure query, no mutation.
func (s *Store) ListDueOneOff(ctx context.Context, now time.Time) ([]OneOffSchedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, next_run_at, repeat_interval, is_paused, is_terminated, last_run_at
		 FROM schedules
		 WHERE is_terminated = 0 AND is_paused = 0 AND next_run_at <= ?`,
		now.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOneOff(rows)
}

func (s *Store) ListOneOff(ctx context.Context) ([]OneOffSchedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, next_run_at, repeat_interval, is_paused, is_terminated, last_run_at
		 FROM schedules WHERE is_terminated = 0 ORDER BY next_run_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOneOff(rows)
}

// MarkOneOffRan applies the post-run transition. With repeat > 0 the next fire
// time advances from the previous scheduled time, not from the clock, so a
// late tick does not skew the cadence. Without repeat the schedule terminates.
func (s *Store) MarkOneOffRan(ctx context.Context, id int64, repeat time.Duration) error {
	now := time.Now().Unix()
	if repeat > 0 {
		_, err := s.db.ExecContext(ctx,
			`UPDATE schedules SET last_run_at = ?, next_run_at = next_run_at + ? WHERE id = ?`,
			now, int64(repeat/time.Second), id)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET last_run_at = ?, is_terminated = 1 WHERE id = ?`,
		now, id)
	return err
}

func (s *Store) SetOneOffPaused(ctx context.Context, id int64, paused bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET is_paused = ? WHERE id = ? AND is_terminated = 0`,
		boolInt(paused), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TerminateOneOff soft-deletes the schedule (administrative removal).
func (s *Store) TerminateOneOff(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET is_terminated = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- weekly schedules ----

func (s *Store) CreateWeekly(ctx context.Context, postID int64, hour, minute, daysMask int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO weekly_schedules(post_id, hour, minute, days_mask, is_paused, last_run_ymd)
		 VALUES(?,?,?,?,0,NULL)`,
		postID, hour, minute, daysMask)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListDueWeekly matches on the exact minute: weekday bit set, hour and minute
// equal, and not already fired today. A minute the process sleeps through is
// gone; there is no catch-up.
func (s *Store) ListDueWeekly(ctx context.Context, weekday, hour, minute, todayKey int) ([]WeeklySchedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, hour, minute, days_mask, is_paused, last_run_ymd
		 FROM weekly_schedules
		 WHERE is_paused = 0 AND hour = ? AND minute = ? AND (days_mask & ?) != 0
		   AND (last_run_ymd IS NULL OR last_run_ymd <> ?)`,
		hour, minute, 1<<weekday, todayKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWeekly(rows)
}

func (s *Store) ListWeekly(ctx context.Context) ([]WeeklySchedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, hour, minute, days_mask, is_paused, last_run_ymd
		 FROM weekly_schedules ORDER BY hour, minute`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWeekly(rows)
}

func (s *Store) MarkWeeklyRan(ctx context.Context, id int64, todayKey int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE weekly_schedules SET last_run_ymd = ? WHERE id = ?`, todayKey, id)
	return err
}

func (s *Store) SetWeeklyPaused(ctx context.Context, id int64, paused bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE weekly_schedules SET is_paused = ? WHERE id = ?`, boolInt(paused), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteWeekly(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM weekly_schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- scan helpers ----

func collectOneOff(rows *sql.Rows) ([]OneOffSchedule, error) {
	var out []OneOffSchedule
	for rows.Next() {
		var (
			sc             OneOffSchedule
			next           int64
			repeat, ran    sql.NullInt64
			paused, termed int
		)
		if err := rows.Scan(&sc.ID, &sc.PostID, &next, &repeat, &paused, &termed, &ran); err != nil {
			return nil, err
		}
		sc.NextRunAt = time.Unix(next, 0)
		if repeat.Valid && repeat.Int64 > 0 {
			sc.RepeatInterval = time.Duration(repeat.Int64) * time.Second
		}
		sc.Paused = paused != 0
		sc.Terminated = termed != 0
		sc.LastRunAt = unixOrZero(ran)
		out = append(out, sc)
	}
	return out, rows.Err()
}

func collectWeekly(rows *sql.Rows) ([]WeeklySchedule, error) {
	var out []WeeklySchedule
	for rows.Next() {
		var (
			sc     WeeklySchedule
			paused int
			ymd    sql.NullInt64
		)
		if err := rows.Scan(&sc.ID, &sc.PostID, &sc.Hour, &sc.Minute, &sc.DaysMask, &paused, &ymd); err != nil {
			return nil, err
		}
		sc.Paused = paused != 0
		if ymd.Valid {
			sc.LastRunYmd = int(ymd.Int64)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
