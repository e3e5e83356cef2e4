package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"promobot/internal/store"
	logx "promobot/pkg/logx"
)

// Service drives the tick loop: a single goroutine that discovers due work on
// a fixed cadence and runs it through the dispatcher. The loop never dies
// because of a per-item failure; anything unexpected is caught at the
// iteration boundary, logged, and the loop sleeps and continues.
type Service struct {
	cfg   Config
	store ScheduleStore
	disp  Dispatcher
	log   logx.Logger

	// now is a clock seam for tests.
	now func() time.Time

	// lastWeeklyMinute gates the weekly resolver to once per wall-clock minute.
	lastWeeklyMinute int64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, st ScheduleStore, disp Dispatcher, log logx.Logger) *Service {
	if cfg.PollPeriod <= 0 {
		cfg.PollPeriod = defaultPollPeriod
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:              cfg,
		store:            st,
		disp:             disp,
		log:              log,
		now:              time.Now,
		lastWeeklyMinute: -1,
	}
}

// Start launches the loop. The next iteration begins only after the sleep
// following full completion of the current one; iterations never overlap.
func (s *Service) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx)
	s.log.Info("scheduler started",
		logx.Duration("poll_period", s.cfg.PollPeriod),
		logx.String("timezone", s.cfg.Location.String()),
	)
}

// Stop cancels the loop and waits for the current iteration to finish, bounded
// by ctx. An in-flight delivery is allowed to complete rather than abort
// mid-send.
func (s *Service) Stop(ctx context.Context) {
	s.runMu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	timer := time.NewTimer(0)
	defer timer.Stop()
	// Consume the immediate first fire so the loop body runs right away.
	<-timer.C

	for {
		s.safeTick(ctx)

		timer.Reset(s.cfg.PollPeriod)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// safeTick is the liveness boundary: this is the only blanket catch-all in the
// engine, and it exists solely so a malformed item or store hiccup degrades
// one iteration, not the whole service.
func (s *Service) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tick panicked",
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	if err := s.tick(ctx); err != nil {
		s.log.Error("tick failed", logx.Err(err))
	}
}

func (s *Service) tick(ctx context.Context) error {
	now := s.now().In(s.cfg.Location)

	if err := s.runDueOneOff(ctx, now); err != nil {
		return err
	}

	// The weekly resolver runs at most once per wall-clock minute.
	minute := now.Unix() / 60
	if minute != s.lastWeeklyMinute {
		s.lastWeeklyMinute = minute
		if err := s.runWeekly(ctx, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) runDueOneOff(ctx context.Context, now time.Time) error {
	due, err := s.store.ListDueOneOff(ctx, now)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}
	for _, sc := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.fireOneOff(ctx, sc, now)
	}
	return nil
}

// fireOneOff runs one due schedule end to end. A failure inside affects this
// schedule only; the loop moves on to the next due item.
func (s *Service) fireOneOff(ctx context.Context, sc store.OneOffSchedule, now time.Time) {
	post, ok, err := s.store.GetPost(ctx, sc.PostID)
	if err != nil {
		s.log.Warn("post lookup failed", logx.Int64("schedule_id", sc.ID), logx.Int64("post_id", sc.PostID), logx.Err(err))
		return
	}
	if !ok {
		// Dangling reference: clean up silently, never dispatch.
		s.log.Info("schedule points at a deleted post; terminating",
			logx.Int64("schedule_id", sc.ID), logx.Int64("post_id", sc.PostID))
		if err := s.store.MarkOneOffRan(ctx, sc.ID, 0); err != nil {
			s.log.Warn("terminate failed", logx.Int64("schedule_id", sc.ID), logx.Err(err))
		}
		return
	}

	rep, err := s.disp.Dispatch(ctx, post)
	if err != nil {
		// Leave the schedule due; the next tick is the retry path.
		s.log.Warn("dispatch failed", logx.Int64("schedule_id", sc.ID), logx.Int64("post_id", post.ID), logx.Err(err))
		return
	}

	if err := s.store.MarkOneOffRan(ctx, sc.ID, sc.RepeatInterval); err != nil {
		s.log.Warn("reschedule failed", logx.Int64("schedule_id", sc.ID), logx.Err(err))
		return
	}
	s.log.Info("schedule fired",
		logx.Int64("schedule_id", sc.ID),
		logx.Int64("post_id", post.ID),
		logx.Int("sent", rep.Sent),
		logx.Int("blocked", rep.Blocked),
		logx.Bool("repeats", sc.Repeats()),
	)
}

func (s *Service) runWeekly(ctx context.Context, now time.Time) error {
	weekday := localWeekday(now)
	todayKey := store.YmdKey(now)

	due, err := s.store.ListDueWeekly(ctx, weekday, now.Hour(), now.Minute(), todayKey)
	if err != nil {
		return fmt.Errorf("list due weekly schedules: %w", err)
	}
	for _, sc := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.fireWeekly(ctx, sc, todayKey)
	}
	return nil
}

func (s *Service) fireWeekly(ctx context.Context, sc store.WeeklySchedule, todayKey int) {
	post, ok, err := s.store.GetPost(ctx, sc.PostID)
	if err != nil {
		s.log.Warn("post lookup failed", logx.Int64("schedule_id", sc.ID), logx.Int64("post_id", sc.PostID), logx.Err(err))
		return
	}
	if !ok {
		s.log.Info("weekly schedule points at a deleted post; marking ran",
			logx.Int64("schedule_id", sc.ID), logx.Int64("post_id", sc.PostID))
		if err := s.store.MarkWeeklyRan(ctx, sc.ID, todayKey); err != nil {
			s.log.Warn("mark-ran failed", logx.Int64("schedule_id", sc.ID), logx.Err(err))
		}
		return
	}

	rep, err := s.disp.Dispatch(ctx, post)
	if err != nil {
		// Not marked ran. The weekly resolver only runs once per minute, so a
		// failed occurrence is effectively gone until next week.
		s.log.Warn("dispatch failed", logx.Int64("schedule_id", sc.ID), logx.Int64("post_id", post.ID), logx.Err(err))
		return
	}

	if err := s.store.MarkWeeklyRan(ctx, sc.ID, todayKey); err != nil {
		s.log.Warn("mark-ran failed", logx.Int64("schedule_id", sc.ID), logx.Err(err))
		return
	}
	s.log.Info("weekly schedule fired",
		logx.Int64("schedule_id", sc.ID),
		logx.Int64("post_id", post.ID),
		logx.Int("sent", rep.Sent),
		logx.Int("blocked", rep.Blocked),
	)
}
