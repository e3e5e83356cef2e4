package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "promobot/pkg/logx"
)

// notifyReady tells systemd the service is up. Outside systemd (no
// NOTIFY_SOCKET) this is a no-op.
func notifyReady(log logx.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warn("sd_notify failed", logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify ready sent")
	}
}

func notifyStopping(log logx.Logger) {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Warn("sd_notify failed", logx.Err(err))
	}
}

// watchdogLoop pings the systemd watchdog at half the configured interval.
// Returns immediately when the watchdog is not enabled.
func watchdogLoop(ctx context.Context, log logx.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("sd_watchdog probe failed", logx.Err(err))
		return
	}
	if interval == 0 {
		return
	}

	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.Warn("sd_notify watchdog failed", logx.Err(err))
			}
		}
	}
}
