package scheduler

import (
	"context"
	"time"

	"promobot/internal/broadcast"
	"promobot/internal/store"
)

// ScheduleStore is the persistence surface the tick loop needs. Every call is
// a self-contained committed operation; the loop holds no cross-call locks.
type ScheduleStore interface {
	ListDueOneOff(ctx context.Context, now time.Time) ([]store.OneOffSchedule, error)
	ListDueWeekly(ctx context.Context, weekday, hour, minute, todayKey int) ([]store.WeeklySchedule, error)
	MarkOneOffRan(ctx context.Context, id int64, repeat time.Duration) error
	MarkWeeklyRan(ctx context.Context, id int64, todayKey int) error
	GetPost(ctx context.Context, id int64) (store.Post, bool, error)
}

// Dispatcher runs one complete fan-out for a post.
type Dispatcher interface {
	Dispatch(ctx context.Context, post store.Post) (broadcast.Report, error)
}

type Config struct {
	// PollPeriod is the tick cadence. Default 5s.
	PollPeriod time.Duration
	// Location is the timezone for weekly day/time matching. Default local.
	Location *time.Location
}

const defaultPollPeriod = 5 * time.Second

// localWeekday maps time.Weekday (Sunday=0) to the Monday=0 indexing used by
// the weekly days mask.
func localWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
