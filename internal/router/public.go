package router

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"promobot/internal/broadcast"
	"promobot/internal/store"
	logx "promobot/pkg/logx"
)

const handlerTimeout = 15 * time.Second

// handleStart registers (or reactivates) the subscriber, credits the tracking
// link if the deep-link payload names one, and replies with the welcome post.
func (r *Router) handleStart(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if err := r.st.UpsertSubscriber(ctx, sender.ID, sender.FirstName, sender.Username); err != nil {
		r.log.Warn("subscriber upsert failed", logx.Int64("user_id", sender.ID), logx.Err(err))
	}

	if payload := strings.TrimSpace(c.Message().Payload); payload != "" {
		newUser, err := r.st.RecordTrackingStart(ctx, payload, sender.ID)
		switch {
		case err == nil:
			r.log.Debug("tracking start recorded",
				logx.String("tracking_id", payload),
				logx.Int64("user_id", sender.ID),
				logx.Bool("new_user", newUser),
			)
		case !errors.Is(err, store.ErrNotFound):
			r.log.Warn("tracking start failed", logx.String("tracking_id", payload), logx.Err(err))
		}
	}

	return r.sendWelcome(ctx, c)
}

func (r *Router) sendWelcome(ctx context.Context, c tele.Context) error {
	raw, ok, err := r.st.GetSetting(ctx, store.SettingWelcomePostID)
	if err != nil {
		return err
	}
	if ok {
		if id, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			post, found, gerr := r.st.GetPost(ctx, id)
			if gerr == nil && found {
				p, rerr := r.disp.Render(ctx, post)
				if rerr == nil {
					out := r.gw.Send(ctx, c.Chat().ID, p)
					if out.Status == broadcast.Delivered {
						return nil
					}
					r.log.Warn("welcome send failed", logx.Int64("post_id", id), logx.Err(out.Err))
					return nil
				}
				r.log.Warn("welcome render failed", logx.Int64("post_id", id), logx.Err(rerr))
			}
		}
	}
	return c.Send("Welcome! You are subscribed.")
}

func (r *Router) handleJoinRequest(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	g, err := r.st.GetGroup(ctx, chat.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.log.Warn("group lookup failed", logx.Int64("chat_id", chat.ID), logx.Err(err))
		}
		return nil
	}
	if !g.Enabled {
		return nil
	}

	if err := r.bot.ApproveJoinRequest(chat, sender); err != nil {
		r.log.Warn("join approval failed",
			logx.Int64("chat_id", chat.ID), logx.Int64("user_id", sender.ID), logx.Err(err))
		return nil
	}
	r.log.Info("join request approved", logx.Int64("chat_id", chat.ID), logx.Int64("user_id", sender.ID))
	return nil
}
