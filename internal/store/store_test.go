package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "promobot/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreatePost(t *testing.T, s *Store, title string) int64 {
	t.Helper()
	id, err := s.CreatePost(context.Background(), Post{
		Title: title,
		Kind:  KindText,
		Text:  "body",
	})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	return id
}

func TestOneOffDueAndPhasePreservingReschedule(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	postID := mustCreatePost(t, s, "promo")
	fireAt := time.Now().Add(-30 * time.Second).Truncate(time.Second)
	id, err := s.CreateOneOff(ctx, postID, fireAt, time.Hour)
	if err != nil {
		t.Fatalf("CreateOneOff: %v", err)
	}

	due, err := s.ListDueOneOff(ctx, time.Now())
	if err != nil {
		t.Fatalf("ListDueOneOff: %v", err)
	}
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("due = %+v, want schedule %d", due, id)
	}
	if !due[0].Repeats() {
		t.Fatal("expected repeating schedule")
	}

	if err := s.MarkOneOffRan(ctx, id, due[0].RepeatInterval); err != nil {
		t.Fatalf("MarkOneOffRan: %v", err)
	}

	all, err := s.ListOneOff(ctx)
	if err != nil {
		t.Fatalf("ListOneOff: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d schedules, want 1", len(all))
	}
	// The next fire time advances from the previous scheduled time, not from
	// the clock, so cadence is preserved even for a late tick.
	want := fireAt.Add(time.Hour)
	if !all[0].NextRunAt.Equal(want) {
		t.Fatalf("NextRunAt = %v, want %v", all[0].NextRunAt, want)
	}
	if all[0].LastRunAt.IsZero() {
		t.Fatal("LastRunAt not recorded")
	}
}

func TestOneOffNonRepeatingTerminates(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	postID := mustCreatePost(t, s, "once")
	id, err := s.CreateOneOff(ctx, postID, time.Now().Add(-time.Minute), 0)
	if err != nil {
		t.Fatalf("CreateOneOff: %v", err)
	}

	if err := s.MarkOneOffRan(ctx, id, 0); err != nil {
		t.Fatalf("MarkOneOffRan: %v", err)
	}

	due, err := s.ListDueOneOff(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ListDueOneOff: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("terminated schedule still due: %+v", due)
	}
	all, err := s.ListOneOff(ctx)
	if err != nil {
		t.Fatalf("ListOneOff: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("terminated schedule still listed: %+v", all)
	}
}

func TestOneOffPausedAndFutureExcluded(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	postID := mustCreatePost(t, s, "promo")
	now := time.Now()

	paused, err := s.CreateOneOff(ctx, postID, now.Add(-time.Minute), 0)
	if err != nil {
		t.Fatalf("CreateOneOff: %v", err)
	}
	if err := s.SetOneOffPaused(ctx, paused, true); err != nil {
		t.Fatalf("SetOneOffPaused: %v", err)
	}
	if _, err := s.CreateOneOff(ctx, postID, now.Add(time.Hour), 0); err != nil {
		t.Fatalf("CreateOneOff: %v", err)
	}

	due, err := s.ListDueOneOff(ctx, now)
	if err != nil {
		t.Fatalf("ListDueOneOff: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("due = %+v, want none", due)
	}

	if err := s.SetOneOffPaused(ctx, paused, false); err != nil {
		t.Fatalf("SetOneOffPaused: %v", err)
	}
	due, err = s.ListDueOneOff(ctx, now)
	if err != nil {
		t.Fatalf("ListDueOneOff: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("got %d due after resume, want 1", len(due))
	}

	if err := s.SetOneOffPaused(ctx, 9999, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pause of unknown schedule: err = %v, want ErrNotFound", err)
	}
}

func TestWeeklyDueMatching(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	postID := mustCreatePost(t, s, "weekly")
	// Monday and Wednesday at 10:30.
	mask := 1<<0 | 1<<2
	id, err := s.CreateWeekly(ctx, postID, 10, 30, mask)
	if err != nil {
		t.Fatalf("CreateWeekly: %v", err)
	}

	today := 20260831

	tests := []struct {
		name    string
		weekday int
		hour    int
		minute  int
		want    int
	}{
		{name: "monday match", weekday: 0, hour: 10, minute: 30, want: 1},
		{name: "wednesday match", weekday: 2, hour: 10, minute: 30, want: 1},
		{name: "tuesday no match", weekday: 1, hour: 10, minute: 30, want: 0},
		{name: "wrong hour", weekday: 0, hour: 11, minute: 30, want: 0},
		{name: "wrong minute", weekday: 0, hour: 10, minute: 31, want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			due, err := s.ListDueWeekly(ctx, tt.weekday, tt.hour, tt.minute, today)
			if err != nil {
				t.Fatalf("ListDueWeekly: %v", err)
			}
			if len(due) != tt.want {
				t.Fatalf("got %d due, want %d", len(due), tt.want)
			}
		})
	}

	// Marking ran for today removes it from today's due set but not tomorrow's.
	if err := s.MarkWeeklyRan(ctx, id, today); err != nil {
		t.Fatalf("MarkWeeklyRan: %v", err)
	}
	due, err := s.ListDueWeekly(ctx, 0, 10, 30, today)
	if err != nil {
		t.Fatalf("ListDueWeekly: %v", err)
	}
	if len(due) != 0 {
		t.Fatal("schedule due again on the same day")
	}
	due, err = s.ListDueWeekly(ctx, 0, 10, 30, today+1)
	if err != nil {
		t.Fatalf("ListDueWeekly: %v", err)
	}
	if len(due) != 1 {
		t.Fatal("schedule not due on the next day")
	}
}

func TestDeletePostCascades(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	postID := mustCreatePost(t, s, "doomed")
	if _, err := s.CreateOneOff(ctx, postID, time.Now().Add(-time.Minute), 0); err != nil {
		t.Fatalf("CreateOneOff: %v", err)
	}
	if _, err := s.CreateWeekly(ctx, postID, 9, 0, 1); err != nil {
		t.Fatalf("CreateWeekly: %v", err)
	}

	if err := s.DeletePost(ctx, postID); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}

	if _, found, err := s.GetPost(ctx, postID); err != nil || found {
		t.Fatalf("GetPost after delete: found=%v err=%v", found, err)
	}
	due, err := s.ListDueOneOff(ctx, time.Now())
	if err != nil {
		t.Fatalf("ListDueOneOff: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("schedules survived post delete: %+v", due)
	}
	weekly, err := s.ListWeekly(ctx)
	if err != nil {
		t.Fatalf("ListWeekly: %v", err)
	}
	if len(weekly) != 0 {
		t.Fatalf("weekly schedules survived post delete: %+v", weekly)
	}
	if _, err := s.GetPostStats(ctx, postID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stats survived post delete: err = %v", err)
	}

	if err := s.DeletePost(ctx, postID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestSubscriberUpsertReactivates(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertSubscriber(ctx, 100, "Ann", "ann"); err != nil {
		t.Fatalf("UpsertSubscriber: %v", err)
	}
	if err := s.SetActive(ctx, 100, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	n, err := s.CountActive(ctx)
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if n != 0 {
		t.Fatalf("active = %d after deactivation, want 0", n)
	}

	// Any later contact flips the subscriber back on.
	if err := s.UpsertSubscriber(ctx, 100, "Ann", "ann_new"); err != nil {
		t.Fatalf("UpsertSubscriber: %v", err)
	}
	page, err := s.ListActive(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(page) != 1 || page[0].Username != "ann_new" {
		t.Fatalf("page = %+v, want reactivated user with updated username", page)
	}
}

func TestListActivePaging(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for id := int64(1); id <= 5; id++ {
		if err := s.UpsertSubscriber(ctx, id, "", ""); err != nil {
			t.Fatalf("UpsertSubscriber(%d): %v", id, err)
		}
	}
	if err := s.SetActive(ctx, 3, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	var got []int64
	for offset := 0; ; offset += 2 {
		page, err := s.ListActive(ctx, 2, offset)
		if err != nil {
			t.Fatalf("ListActive: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, sub := range page {
			got = append(got, sub.UserID)
		}
	}
	want := []int64{1, 2, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestIncrementDelivered(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	postID := mustCreatePost(t, s, "stats")
	if err := s.IncrementDelivered(ctx, postID, 7); err != nil {
		t.Fatalf("IncrementDelivered: %v", err)
	}
	if err := s.IncrementDelivered(ctx, postID, 0); err != nil {
		t.Fatalf("IncrementDelivered(0): %v", err)
	}
	if err := s.IncrementDelivered(ctx, postID, 3); err != nil {
		t.Fatalf("IncrementDelivered: %v", err)
	}

	st, err := s.GetPostStats(ctx, postID)
	if err != nil {
		t.Fatalf("GetPostStats: %v", err)
	}
	if st.DeliveredCount != 10 {
		t.Fatalf("DeliveredCount = %d, want 10", st.DeliveredCount)
	}
	if st.LastDeliveredAt.IsZero() {
		t.Fatal("LastDeliveredAt not set")
	}
}

func TestTrackingStarts(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateTrackingLink(ctx, "summer", "abc123"); err != nil {
		t.Fatalf("CreateTrackingLink: %v", err)
	}

	newUser, err := s.RecordTrackingStart(ctx, "abc123", 42)
	if err != nil {
		t.Fatalf("RecordTrackingStart: %v", err)
	}
	if !newUser {
		t.Fatal("first start should report a new user")
	}
	newUser, err = s.RecordTrackingStart(ctx, "abc123", 42)
	if err != nil {
		t.Fatalf("RecordTrackingStart: %v", err)
	}
	if newUser {
		t.Fatal("repeat start should not report a new user")
	}

	l, err := s.GetTrackingLink(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetTrackingLink: %v", err)
	}
	if l.Starts != 2 || l.UniqueUsers != 1 {
		t.Fatalf("starts=%d unique=%d, want 2/1", l.Starts, l.UniqueUsers)
	}

	if _, err := s.RecordTrackingStart(ctx, "missing", 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown link: err = %v, want ErrNotFound", err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetSetting(ctx, SettingGlobalLink); err != nil || ok {
		t.Fatalf("GetSetting on empty table: ok=%v err=%v", ok, err)
	}
	if err := s.SetSetting(ctx, SettingGlobalLink, "https://example.com/a"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := s.SetSetting(ctx, SettingGlobalLink, "https://example.com/b"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	v, ok, err := s.GetSetting(ctx, SettingGlobalLink)
	if err != nil || !ok {
		t.Fatalf("GetSetting: ok=%v err=%v", ok, err)
	}
	if v != "https://example.com/b" {
		t.Fatalf("value = %q, want overwritten value", v)
	}
}

func TestYmdKey(t *testing.T) {
	t.Parallel()
	got := YmdKey(time.Date(2026, time.August, 31, 23, 59, 0, 0, time.UTC))
	if got != 20260831 {
		t.Fatalf("YmdKey = %d, want 20260831", got)
	}
}
