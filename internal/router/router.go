package router

import (
	"time"

	tele "gopkg.in/telebot.v4"

	"promobot/internal/broadcast"
	"promobot/internal/store"
	logx "promobot/pkg/logx"
)

type Config struct {
	AdminUserIDs []int64
	Location     *time.Location
}

// Router wires bot updates to the store and dispatcher. Schedule creation here
// is intentionally thin: each command builds one request and hands it to the
// store, with no conversational state.
type Router struct {
	cfg    Config
	bot    *tele.Bot
	st     *store.Store
	disp   *broadcast.Dispatcher
	gw     broadcast.Gateway
	log    logx.Logger
	admins map[int64]bool
}

func New(cfg Config, bot *tele.Bot, st *store.Store, disp *broadcast.Dispatcher, gw broadcast.Gateway, log logx.Logger) *Router {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	admins := make(map[int64]bool, len(cfg.AdminUserIDs))
	for _, id := range cfg.AdminUserIDs {
		admins[id] = true
	}
	return &Router{cfg: cfg, bot: bot, st: st, disp: disp, gw: gw, log: log, admins: admins}
}

// Register installs all handlers on the bot.
func (r *Router) Register() {
	r.bot.Handle("/start", r.handleStart)
	r.bot.Handle(tele.OnChatJoinRequest, r.handleJoinRequest)

	r.bot.Handle("/admin", r.adminOnly(r.handleHelp))
	r.bot.Handle("/posts", r.adminOnly(r.handlePosts))
	r.bot.Handle("/post", r.adminOnly(r.handlePost))
	r.bot.Handle("/delpost", r.adminOnly(r.handleDelPost))
	r.bot.Handle("/publish", r.adminOnly(r.handlePublish))
	r.bot.Handle("/schedule", r.adminOnly(r.handleSchedule))
	r.bot.Handle("/weekly", r.adminOnly(r.handleWeekly))
	r.bot.Handle("/schedules", r.adminOnly(r.handleSchedules))
	r.bot.Handle("/pause", r.adminOnly(r.handlePause))
	r.bot.Handle("/resume", r.adminOnly(r.handleResume))
	r.bot.Handle("/delsched", r.adminOnly(r.handleDelSched))
	r.bot.Handle("/wpause", r.adminOnly(r.handleWeeklyPause))
	r.bot.Handle("/wresume", r.adminOnly(r.handleWeeklyResume))
	r.bot.Handle("/wdel", r.adminOnly(r.handleWeeklyDelete))
	r.bot.Handle("/stats", r.adminOnly(r.handleStats))
	r.bot.Handle("/setlink", r.adminOnly(r.handleSetLink))
	r.bot.Handle("/setbutton", r.adminOnly(r.handleSetButton))
	r.bot.Handle("/newtrack", r.adminOnly(r.handleNewTrack))
	r.bot.Handle("/tracks", r.adminOnly(r.handleTracks))
	r.bot.Handle("/deltrack", r.adminOnly(r.handleDelTrack))
	r.bot.Handle("/groupadd", r.adminOnly(r.handleGroupAdd))
	r.bot.Handle("/groupon", r.adminOnly(r.handleGroupToggle(true)))
	r.bot.Handle("/groupoff", r.adminOnly(r.handleGroupToggle(false)))
	r.bot.Handle("/groups", r.adminOnly(r.handleGroups))
}

func (r *Router) adminOnly(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil || !r.admins[sender.ID] {
			return nil
		}
		return h(c)
	}
}
