package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"promobot/internal/broadcast"
	"promobot/internal/config"
	"promobot/internal/router"
	"promobot/internal/scheduler"
	"promobot/internal/store"
	"promobot/internal/telegram"
	logx "promobot/pkg/logx"
)

type Options struct {
	// Token overrides telegram.token from the config file when non-empty.
	Token string
}

// App owns every long-lived component and their start/stop order.
type App struct {
	cfgPath string
	mgr     *config.Manager

	logSvc *logx.Service
	log    logx.Logger

	st    *store.Store
	gw    *telegram.Gateway
	disp  *broadcast.Dispatcher
	sched *scheduler.Service
	rt    *router.Router
	cron  *cron.Cron

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string, opts Options) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if opts.Token != "" {
		cfg.Telegram.Token = opts.Token
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	mgr.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, logSvc.Logger().With(logx.String("comp", "store")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	gw, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	disp := broadcast.New(broadcast.Config{
		PageSize: cfg.Broadcast.PageSize,
		Workers:  cfg.Broadcast.Workers,
	}, st, gw, &settingsResolver{st: st, mgr: mgr},
		logSvc.Logger().With(logx.String("comp", "broadcast")))

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("scheduler.timezone: %w", err)
		}
	}
	pollPeriod, err := config.ParseDurationField("scheduler.poll_period", cfg.Scheduler.PollPeriod)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(scheduler.Config{
		PollPeriod: pollPeriod,
		Location:   loc,
	}, st, disp, logSvc.Logger().With(logx.String("comp", "scheduler")))

	rt := router.New(router.Config{
		AdminUserIDs: cfg.Telegram.AdminUserIDs,
		Location:     loc,
	}, gw.Bot(), st, disp, gw,
		logSvc.Logger().With(logx.String("comp", "router")))
	rt.Register()

	a := &App{
		cfgPath: cfgPath,
		mgr:     mgr,
		logSvc:  logSvc,
		log:     log,
		st:      st,
		gw:      gw,
		disp:    disp,
		sched:   sched,
		rt:      rt,
	}
	a.cron = a.newMaintenanceCron(loc)

	if err := a.seed(context.Background()); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}
	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.mgr.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.mgr.Watch(runCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	sub := a.mgr.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.mgr.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()

	a.gw.Start(runCtx)
	a.sched.Start(runCtx)
	a.cron.Start()

	notifyReady(a.log)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		watchdogLoop(runCtx, a.log)
	}()

	a.log.Info("started", logx.String("config", a.cfgPath))
	return nil
}

// Stop shuts components down in reverse start order and flushes the store.
func (a *App) Stop(ctx context.Context) error {
	notifyStopping(a.log)
	if a.cancel != nil {
		a.cancel()
	}

	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	a.sched.Stop(ctx)
	a.gw.Stop(ctx)
	a.wg.Wait()

	if err := a.st.Checkpoint(ctx); err != nil {
		a.log.Warn("final checkpoint failed", logx.Err(err))
	}
	if err := a.st.Close(); err != nil {
		a.log.Warn("store close failed", logx.Err(err))
	}
	a.log.Info("stopped")
	return a.logSvc.Close()
}

// reloadLoop applies hot-reloaded config to the live components. Structural
// settings (token, storage path, timezone) require a restart and are ignored
// here.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the newest config matters.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.disp.Apply(broadcast.Config{
				PageSize: cfg.Broadcast.PageSize,
				Workers:  cfg.Broadcast.Workers,
			})
			a.gw.ApplyRate(cfg.Telegram.RatePerSec)
			a.log.Info("config applied",
				logx.String("level", cfg.Logging.Level),
				logx.Int("page_size", cfg.Broadcast.PageSize),
				logx.Int("workers", cfg.Broadcast.Workers),
				logx.Int("rate_per_sec", cfg.Telegram.RatePerSec),
			)
		}
	}
}
