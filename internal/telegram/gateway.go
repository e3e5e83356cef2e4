package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"promobot/internal/broadcast"
	"promobot/internal/store"
	logx "promobot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// RatePerSec caps outgoing sends. 0 means the default (25/s, a little
	// under the Bot API broadcast ceiling).
	RatePerSec int
}

const defaultRatePerSec = 25

// Gateway is the Telegram delivery gateway. It renders payloads into Bot API
// calls and maps API failures to tagged outcomes.
type Gateway struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	mu      sync.Mutex
	limiter *rate.Limiter

	runMu   sync.Mutex
	running bool
}

func New(cfg Config, log logx.Logger) (*Gateway, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = defaultRatePerSec
	}
	return &Gateway{
		cfg:     cfg,
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Bot exposes the underlying telebot instance for handler registration.
func (g *Gateway) Bot() *tele.Bot { return g.bot }

// ApplyRate swaps the send limiter at runtime.
func (g *Gateway) ApplyRate(perSec int) {
	if perSec <= 0 {
		perSec = defaultRatePerSec
	}
	g.mu.Lock()
	g.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
	g.mu.Unlock()
}

// Start begins long-polling for updates. It returns immediately; polling runs
// until Stop.
func (g *Gateway) Start(ctx context.Context) {
	g.runMu.Lock()
	if g.running {
		g.runMu.Unlock()
		return
	}
	g.running = true
	g.runMu.Unlock()

	go func() {
		<-ctx.Done()
		g.bot.Stop()
	}()
	go func() {
		g.log.Info("polling started")
		g.bot.Start()
		g.log.Info("polling stopped")
	}()
}

func (g *Gateway) Stop(ctx context.Context) {
	g.runMu.Lock()
	wasRunning := g.running
	g.running = false
	g.runMu.Unlock()
	if !wasRunning {
		return
	}
	// telebot Stop is expected to be fast; run it async just in case.
	done := make(chan struct{})
	go func() {
		g.bot.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Send delivers one rendered payload to one recipient and classifies the
// result. The current delivery is never aborted mid-send; ctx is only
// consulted before the API call.
func (g *Gateway) Send(ctx context.Context, userID int64, p broadcast.Payload) broadcast.Outcome {
	g.mu.Lock()
	lim := g.limiter
	g.mu.Unlock()
	if err := lim.Wait(ctx); err != nil {
		return broadcast.Outcome{Status: broadcast.TransientError, Err: err}
	}

	err := g.sendPayload(&tele.User{ID: userID}, p)
	switch {
	case err == nil:
		return broadcast.Outcome{Status: broadcast.Delivered}
	case permanentlyUnreachable(err):
		return broadcast.Outcome{Status: broadcast.Blocked, Err: err}
	default:
		return broadcast.Outcome{Status: broadcast.TransientError, Err: err}
	}
}

func (g *Gateway) sendPayload(to tele.Recipient, p broadcast.Payload) error {
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if p.HasButton() {
		markup := &tele.ReplyMarkup{}
		markup.Inline(markup.Row(markup.URL(p.ButtonLabel, p.ButtonURL)))
		opts.ReplyMarkup = markup
	}

	var err error
	switch {
	case p.Kind == store.KindPhoto && p.MediaRef != "":
		_, err = g.bot.Send(to, &tele.Photo{File: tele.File{FileID: p.MediaRef}, Caption: p.Text}, opts)
	case p.Kind == store.KindAnimation && p.MediaRef != "":
		_, err = g.bot.Send(to, &tele.Animation{File: tele.File{FileID: p.MediaRef}, Caption: p.Text}, opts)
	case p.Kind == store.KindVideo && p.MediaRef != "":
		_, err = g.bot.Send(to, &tele.Video{File: tele.File{FileID: p.MediaRef}, Caption: p.Text}, opts)
	default:
		// Text posts, and media posts whose handle went missing.
		_, err = g.bot.Send(to, p.Text, opts)
	}
	return err
}

// permanentlyUnreachable reports whether the recipient can no longer receive
// messages. Any Bot API 403 means the user blocked the bot, deleted their
// account, or the chat is otherwise closed to us for good.
func permanentlyUnreachable(err error) bool {
	if errors.Is(err, tele.ErrBlockedByUser) || errors.Is(err, tele.ErrUserIsDeactivated) {
		return true
	}
	var te *tele.Error
	if errors.As(err, &te) {
		return te.Code == 403
	}
	return false
}
