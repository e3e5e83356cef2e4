package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup misses.
// Callers that treat absence as a normal case should errors.Is against it.
var ErrNotFound = errors.New("store: not found")

// ContentKind enumerates the supported post payload kinds.
type ContentKind string

const (
	KindText      ContentKind = "text"
	KindPhoto     ContentKind = "photo"
	KindAnimation ContentKind = "animation"
	KindVideo     ContentKind = "video"
)

// Post is an immutable content record. Schedules reference it by id only.
//
// MediaRef holds the platform file handle (empty for text posts).
// LinkOverride/ButtonLabel are per-post overrides of the global settings;
// empty means "use the global value".
type Post struct {
	ID           int64
	Title        string
	Kind         ContentKind
	MediaRef     string
	Text         string
	LinkOverride string
	ButtonLabel  string
	CreatedAt    time.Time
}

// OneOffSchedule fires once at NextRunAt, or repeatedly every RepeatInterval.
// A terminated schedule is soft-deleted: it stays in the table but is never
// returned by due queries.
type OneOffSchedule struct {
	ID             int64
	PostID         int64
	NextRunAt      time.Time
	RepeatInterval time.Duration // 0 = fire once
	Paused         bool
	Terminated     bool
	LastRunAt      time.Time // zero if never ran
}

// Repeats reports whether the schedule reschedules itself after firing.
func (s OneOffSchedule) Repeats() bool { return s.RepeatInterval > 0 }

// WeeklySchedule fires at Hour:Minute on every weekday whose bit is set in
// DaysMask (bit 0 = Monday .. bit 6 = Sunday). LastRunYmd dedupes firings to
// at most once per calendar day.
type WeeklySchedule struct {
	ID         int64
	PostID     int64
	Hour       int
	Minute     int
	DaysMask   int
	Paused     bool
	LastRunYmd int // YYYY*10000+MM*100+DD, 0 if never ran
}

// FiresOn reports whether the mask covers the given weekday (Monday=0).
func (s WeeklySchedule) FiresOn(weekday int) bool {
	return weekday >= 0 && weekday < 7 && s.DaysMask&(1<<weekday) != 0
}

type Subscriber struct {
	UserID    int64
	FirstName string
	Username  string
	Active    bool
	JoinedAt  time.Time
}

// PostStats counts completed deliveries per post. DeliveredCount only ever
// grows; it is bumped once per fan-out, not per recipient.
type PostStats struct {
	PostID          int64
	DeliveredCount  int64
	LastDeliveredAt time.Time
}

// TrackingLink is a named deep-link whose /start payload is TrackingID.
type TrackingLink struct {
	ID          int64
	Name        string
	TrackingID  string
	Clicks      int64
	Starts      int64
	UniqueUsers int64
	CreatedAt   time.Time
}

// Group is a chat whose join requests the bot auto-approves while enabled.
type Group struct {
	ID        int64
	ChatID    int64
	Title     string
	Enabled   bool
	CreatedAt time.Time
}

// YmdKey collapses a time to its calendar-date key in t's location.
func YmdKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}
