package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"promobot/internal/broadcast"
	"promobot/internal/store"
	logx "promobot/pkg/logx"
)

const maintenanceTimeout = 2 * time.Minute

// newMaintenanceCron wires the background housekeeping jobs: an hourly WAL
// checkpoint and a morning stats digest for the admins.
func (a *App) newMaintenanceCron(loc *time.Location) *cron.Cron {
	c := cron.New(cron.WithLocation(loc))

	_, _ = c.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
		defer cancel()
		if err := a.st.Checkpoint(ctx); err != nil {
			a.log.Warn("wal checkpoint failed", logx.Err(err))
		}
	})

	_, _ = c.AddFunc("0 9 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
		defer cancel()
		a.sendDailyDigest(ctx)
	})

	return c
}

func (a *App) sendDailyDigest(ctx context.Context) {
	cfg := a.mgr.Get()
	if cfg == nil || len(cfg.Telegram.AdminUserIDs) == 0 {
		return
	}

	total, err := a.st.CountSubscribers(ctx)
	if err != nil {
		a.log.Warn("digest query failed", logx.Err(err))
		return
	}
	active, err := a.st.CountActive(ctx)
	if err != nil {
		a.log.Warn("digest query failed", logx.Err(err))
		return
	}
	joined, err := a.st.CountJoinedSince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		a.log.Warn("digest query failed", logx.Err(err))
		return
	}

	text := fmt.Sprintf(
		"Daily digest\nSubscribers: %d total, %d active\nJoined in the last 24h: %d",
		total, active, joined)
	p := broadcast.Payload{Kind: store.KindText, Text: text}
	for _, adminID := range cfg.Telegram.AdminUserIDs {
		if out := a.gw.Send(ctx, adminID, p); out.Status != broadcast.Delivered {
			a.log.Warn("digest send failed", logx.Int64("user_id", adminID), logx.Err(out.Err))
		}
	}
}
