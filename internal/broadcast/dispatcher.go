package broadcast

import (
	"context"
	"sync"
	"time"

	"promobot/internal/store"
	logx "promobot/pkg/logx"
)

const (
	defaultPageSize = 1000
	defaultWorkers  = 1
)

type Config struct {
	// PageSize bounds how many subscribers are held in memory at once.
	PageSize int
	// Workers bounds delivery concurrency. 1 keeps recipient ordering.
	Workers int
}

// Dispatcher fans a single post out to every active subscriber.
type Dispatcher struct {
	mu  sync.Mutex
	cfg Config

	subs     SubscriberStore
	gw       Gateway
	settings Settings
	log      logx.Logger
}

func New(cfg Config, subs SubscriberStore, gw Gateway, settings Settings, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{cfg: cfg, subs: subs, gw: gw, settings: settings, log: log}
}

// Apply swaps the fan-out knobs at runtime (config hot reload).
func (d *Dispatcher) Apply(cfg Config) {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

// Dispatch renders the post and broadcasts it to all active subscribers.
func (d *Dispatcher) Dispatch(ctx context.Context, post store.Post) (Report, error) {
	p, err := d.Render(ctx, post)
	if err != nil {
		return Report{}, err
	}
	return d.Broadcast(ctx, post.ID, p)
}

// Render resolves the outgoing payload: the button URL is the post's override
// if present, else the global link; the label is the post's override, else the
// global label. No URL resolves to no button at all, never a broken one.
func (d *Dispatcher) Render(ctx context.Context, post store.Post) (Payload, error) {
	url := post.LinkOverride
	if url == "" {
		v, err := d.settings.GlobalLink(ctx)
		if err != nil {
			return Payload{}, err
		}
		url = v
	}

	var label string
	if url != "" {
		label = post.ButtonLabel
		if label == "" {
			v, err := d.settings.GlobalButtonLabel(ctx)
			if err != nil {
				return Payload{}, err
			}
			label = v
		}
	}

	return Payload{
		Kind:        post.Kind,
		MediaRef:    post.MediaRef,
		Text:        post.Text,
		ButtonURL:   url,
		ButtonLabel: label,
	}, nil
}

// Broadcast enumerates active subscribers in pages and delivers the payload to
// each, classifying outcomes. The aggregate stats update happens once, after
// every worker has finished, and only when something was sent.
func (d *Dispatcher) Broadcast(ctx context.Context, postID int64, p Payload) (Report, error) {
	d.mu.Lock()
	pageSize := d.cfg.PageSize
	workers := d.cfg.Workers
	d.mu.Unlock()
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	start := time.Now()

	var (
		repMu     sync.Mutex
		rep       Report
		transient int
	)

	recipients := make(chan int64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for userID := range recipients {
				d.deliver(ctx, postID, userID, p, &repMu, &rep, &transient)
			}
		}()
	}

	var pageErr error
	offset := 0
	for {
		page, err := d.subs.ListActive(ctx, pageSize, offset)
		if err != nil {
			pageErr = err
			break
		}
		if len(page) == 0 {
			break
		}
		for _, sub := range page {
			recipients <- sub.UserID
		}
		offset += pageSize
	}
	close(recipients)
	wg.Wait()

	if pageErr != nil {
		d.log.Warn("fan-out aborted on subscriber page",
			logx.Int64("post_id", postID), logx.Int("offset", offset), logx.Err(pageErr))
		return rep, pageErr
	}

	if rep.Sent > 0 {
		if err := d.subs.IncrementDelivered(ctx, postID, rep.Sent); err != nil {
			d.log.Warn("delivery stats update failed", logx.Int64("post_id", postID), logx.Err(err))
		}
	}

	d.log.Info("fan-out finished",
		logx.Int64("post_id", postID),
		logx.Int("sent", rep.Sent),
		logx.Int("blocked", rep.Blocked),
		logx.Int("transient", transient),
		logx.Duration("dur", time.Since(start)),
	)
	return rep, nil
}

func (d *Dispatcher) deliver(ctx context.Context, postID, userID int64, p Payload, mu *sync.Mutex, rep *Report, transient *int) {
	out := d.gw.Send(ctx, userID, p)
	switch out.Status {
	case Delivered:
		mu.Lock()
		rep.Sent++
		mu.Unlock()
	case Blocked:
		// Routine, not an error: convert into a state change.
		if err := d.subs.SetActive(ctx, userID, false); err != nil {
			d.log.Warn("deactivate failed", logx.Int64("user_id", userID), logx.Err(err))
		}
		mu.Lock()
		rep.Blocked++
		mu.Unlock()
	default:
		mu.Lock()
		*transient++
		mu.Unlock()
		d.log.Warn("send failed",
			logx.Int64("post_id", postID), logx.Int64("user_id", userID), logx.Err(out.Err))
	}
}
