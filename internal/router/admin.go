package router

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"promobot/internal/store"
	logx "promobot/pkg/logx"
)

const adminHelp = `Commands:
/posts - list posts
/post <title> | <text> [| <link> [| <label>]] - create a text post
        (reply to a photo/gif/video to create a media post instead)
/delpost <id> - delete a post and its schedules
/publish <id> - broadcast a post now

/schedule <id> <YYYY-MM-DD HH:MM> [repeat, e.g. 24h] - one-off or repeating
/weekly <id> <HH:MM> <days> - days: mon,wed | daily | weekdays | weekends
/schedules - list all schedules
/pause /resume /delsched <id> - manage one-off schedules
/wpause /wresume /wdel <id> - manage weekly schedules

/stats [post_id] - audience and delivery numbers
/setlink <url> - set the global button link
/setbutton <label> - set the global button label

/newtrack <name> - create a tracking deep-link
/tracks - list tracking links
/deltrack <tracking_id> - delete a tracking link

/groupadd - register this group for join auto-approval
/groupon /groupoff [chat_id] - toggle auto-approval
/groups - list registered groups`

func (r *Router) handleHelp(c tele.Context) error {
	return c.Send(adminHelp)
}

// argID parses the first argument as a numeric id.
func argID(c tele.Context) (int64, error) {
	args := c.Args()
	if len(args) == 0 {
		return 0, fmt.Errorf("an id is required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad id %q", args[0])
	}
	return id, nil
}

func (r *Router) handlePosts(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	posts, err := r.st.ListPosts(ctx, 50, 0)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		return c.Send("No posts yet. Create one with /post.")
	}
	var b strings.Builder
	b.WriteString("Posts:\n")
	for _, p := range posts {
		fmt.Fprintf(&b, "#%d [%s] %s\n", p.ID, p.Kind, p.Title)
	}
	return c.Send(b.String())
}

// handlePost creates a post from the command payload, or from the replied-to
// message when that message carries media.
func (r *Router) handlePost(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	msg := c.Message()
	if msg == nil {
		return nil
	}

	p, err := buildPost(msg)
	if err != nil {
		return c.Send(err.Error())
	}

	id, err := r.st.CreatePost(ctx, p)
	if err != nil {
		return err
	}
	r.log.Info("post created", logx.Int64("post_id", id), logx.String("kind", string(p.Kind)))
	return c.Send(fmt.Sprintf("Post #%d created.", id))
}

func buildPost(msg *tele.Message) (store.Post, error) {
	parts := strings.Split(msg.Payload, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	title := parts[0]
	if title == "" {
		return store.Post{}, fmt.Errorf("usage: /post <title> | <text> [| <link> [| <label>]]")
	}

	p := store.Post{Title: title, Kind: store.KindText}
	if len(parts) > 1 {
		p.Text = parts[1]
	}
	if len(parts) > 2 {
		p.LinkOverride = parts[2]
	}
	if len(parts) > 3 {
		p.ButtonLabel = parts[3]
	}

	if src := msg.ReplyTo; src != nil {
		switch {
		case src.Photo != nil:
			p.Kind, p.MediaRef = store.KindPhoto, src.Photo.FileID
		case src.Animation != nil:
			p.Kind, p.MediaRef = store.KindAnimation, src.Animation.FileID
		case src.Video != nil:
			p.Kind, p.MediaRef = store.KindVideo, src.Video.FileID
		}
		if p.Kind != store.KindText && p.Text == "" {
			p.Text = src.Caption
		}
	}

	if p.Kind == store.KindText && p.Text == "" {
		return store.Post{}, fmt.Errorf("a text post needs text: /post <title> | <text>")
	}
	return p, nil
}

func (r *Router) handleDelPost(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	id, err := argID(c)
	if err != nil {
		return c.Send(err.Error())
	}
	if err := r.st.DeletePost(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Send(fmt.Sprintf("Post #%d does not exist.", id))
		}
		return err
	}
	return c.Send(fmt.Sprintf("Post #%d deleted.", id))
}

func (r *Router) handlePublish(c tele.Context) error {
	// Fan-out can take minutes on a large audience.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	id, err := argID(c)
	if err != nil {
		return c.Send(err.Error())
	}
	post, found, err := r.st.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return c.Send(fmt.Sprintf("Post #%d does not exist.", id))
	}

	rep, err := r.disp.Dispatch(ctx, post)
	if err != nil {
		return c.Send(fmt.Sprintf("Broadcast failed: %v", err))
	}
	return c.Send(fmt.Sprintf("Broadcast done: %d delivered, %d blocked.", rep.Sent, rep.Blocked))
}

func (r *Router) handleSchedule(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	args := c.Args()
	if len(args) < 3 {
		return c.Send("Usage: /schedule <post_id> <YYYY-MM-DD HH:MM> [repeat]")
	}
	postID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Send(fmt.Sprintf("bad post id %q", args[0]))
	}
	when, err := parseWhen(args[1]+" "+args[2], r.cfg.Location)
	if err != nil {
		return c.Send(err.Error())
	}
	var repeat time.Duration
	if len(args) > 3 {
		repeat, err = time.ParseDuration(args[3])
		if err != nil || repeat < 0 {
			return c.Send(fmt.Sprintf("bad repeat interval %q", args[3]))
		}
	}

	if _, found, err := r.st.GetPost(ctx, postID); err != nil {
		return err
	} else if !found {
		return c.Send(fmt.Sprintf("Post #%d does not exist.", postID))
	}

	id, err := r.st.CreateOneOff(ctx, postID, when, repeat)
	if err != nil {
		return err
	}
	r.log.Info("schedule created",
		logx.Int64("schedule_id", id), logx.Int64("post_id", postID),
		logx.Time("next_run_at", when), logx.Duration("repeat", repeat))
	if repeat > 0 {
		return c.Send(fmt.Sprintf("Schedule #%d: post #%d at %s, repeating every %s.",
			id, postID, when.Format("2006-01-02 15:04"), repeat))
	}
	return c.Send(fmt.Sprintf("Schedule #%d: post #%d at %s, once.",
		id, postID, when.Format("2006-01-02 15:04")))
}

func (r *Router) handleWeekly(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	args := c.Args()
	if len(args) < 3 {
		return c.Send("Usage: /weekly <post_id> <HH:MM> <days>")
	}
	postID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Send(fmt.Sprintf("bad post id %q", args[0]))
	}
	hour, minute, err := parseTimeOfDay(args[1])
	if err != nil {
		return c.Send(err.Error())
	}
	mask, err := parseDaysMask(strings.Join(args[2:], ","))
	if err != nil {
		return c.Send(err.Error())
	}

	if _, found, err := r.st.GetPost(ctx, postID); err != nil {
		return err
	} else if !found {
		return c.Send(fmt.Sprintf("Post #%d does not exist.", postID))
	}

	id, err := r.st.CreateWeekly(ctx, postID, hour, minute, mask)
	if err != nil {
		return err
	}
	r.log.Info("weekly schedule created",
		logx.Int64("schedule_id", id), logx.Int64("post_id", postID),
		logx.Int("hour", hour), logx.Int("minute", minute), logx.Int("days_mask", mask))
	return c.Send(fmt.Sprintf("Weekly #%d: post #%d at %02d:%02d on %s.",
		id, postID, hour, minute, formatDaysMask(mask)))
}

func (r *Router) handleSchedules(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	oneOff, err := r.st.ListOneOff(ctx)
	if err != nil {
		return err
	}
	weekly, err := r.st.ListWeekly(ctx)
	if err != nil {
		return err
	}
	if len(oneOff) == 0 && len(weekly) == 0 {
		return c.Send("No schedules.")
	}

	var b strings.Builder
	if len(oneOff) > 0 {
		b.WriteString("One-off:\n")
		for _, sc := range oneOff {
			fmt.Fprintf(&b, "#%d post %d at %s", sc.ID, sc.PostID,
				sc.NextRunAt.In(r.cfg.Location).Format("2006-01-02 15:04"))
			if sc.Repeats() {
				fmt.Fprintf(&b, " every %s", sc.RepeatInterval)
			}
			if sc.Paused {
				b.WriteString(" (paused)")
			}
			b.WriteString("\n")
		}
	}
	if len(weekly) > 0 {
		b.WriteString("Weekly:\n")
		for _, sc := range weekly {
			fmt.Fprintf(&b, "#%d post %d at %02d:%02d on %s",
				sc.ID, sc.PostID, sc.Hour, sc.Minute, formatDaysMask(sc.DaysMask))
			if sc.Paused {
				b.WriteString(" (paused)")
			}
			b.WriteString("\n")
		}
	}
	return c.Send(b.String())
}

func (r *Router) handlePause(c tele.Context) error  { return r.setOneOffPaused(c, true) }
func (r *Router) handleResume(c tele.Context) error { return r.setOneOffPaused(c, false) }

func (r *Router) setOneOffPaused(c tele.Context, paused bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	id, err := argID(c)
	if err != nil {
		return c.Send(err.Error())
	}
	if err := r.st.SetOneOffPaused(ctx, id, paused); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Send(fmt.Sprintf("Schedule #%d does not exist.", id))
		}
		return err
	}
	if paused {
		return c.Send(fmt.Sprintf("Schedule #%d paused.", id))
	}
	return c.Send(fmt.Sprintf("Schedule #%d resumed.", id))
}

func (r *Router) handleDelSched(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	id, err := argID(c)
	if err != nil {
		return c.Send(err.Error())
	}
	if err := r.st.TerminateOneOff(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Send(fmt.Sprintf("Schedule #%d does not exist.", id))
		}
		return err
	}
	return c.Send(fmt.Sprintf("Schedule #%d removed.", id))
}

func (r *Router) handleWeeklyPause(c tele.Context) error  { return r.setWeeklyPaused(c, true) }
func (r *Router) handleWeeklyResume(c tele.Context) error { return r.setWeeklyPaused(c, false) }

func (r *Router) setWeeklyPaused(c tele.Context, paused bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	id, err := argID(c)
	if err != nil {
		return c.Send(err.Error())
	}
	if err := r.st.SetWeeklyPaused(ctx, id, paused); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Send(fmt.Sprintf("Weekly #%d does not exist.", id))
		}
		return err
	}
	if paused {
		return c.Send(fmt.Sprintf("Weekly #%d paused.", id))
	}
	return c.Send(fmt.Sprintf("Weekly #%d resumed.", id))
}

func (r *Router) handleWeeklyDelete(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	id, err := argID(c)
	if err != nil {
		return c.Send(err.Error())
	}
	if err := r.st.DeleteWeekly(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Send(fmt.Sprintf("Weekly #%d does not exist.", id))
		}
		return err
	}
	return c.Send(fmt.Sprintf("Weekly #%d removed.", id))
}

func (r *Router) handleStats(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if args := c.Args(); len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send(fmt.Sprintf("bad post id %q", args[0]))
		}
		st, err := r.st.GetPostStats(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.Send(fmt.Sprintf("Post #%d does not exist.", id))
			}
			return err
		}
		last := "never"
		if !st.LastDeliveredAt.IsZero() {
			last = st.LastDeliveredAt.In(r.cfg.Location).Format("2006-01-02 15:04")
		}
		return c.Send(fmt.Sprintf("Post #%d: %d delivered, last %s.", id, st.DeliveredCount, last))
	}

	total, err := r.st.CountSubscribers(ctx)
	if err != nil {
		return err
	}
	active, err := r.st.CountActive(ctx)
	if err != nil {
		return err
	}
	now := time.Now().In(r.cfg.Location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.cfg.Location)
	today, err := r.st.CountJoinedSince(ctx, dayStart)
	if err != nil {
		return err
	}
	posts, err := r.st.CountPosts(ctx)
	if err != nil {
		return err
	}
	return c.Send(fmt.Sprintf(
		"Subscribers: %d total, %d active, %d joined today.\nPosts: %d.",
		total, active, today, posts))
}

func (r *Router) handleSetLink(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	url := strings.TrimSpace(c.Message().Payload)
	if url == "" {
		return c.Send("Usage: /setlink <url>")
	}
	if err := r.st.SetSetting(ctx, store.SettingGlobalLink, url); err != nil {
		return err
	}
	r.log.Info("global link updated", logx.String("url", url))
	return c.Send("Global link updated.")
}

func (r *Router) handleSetButton(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	label := strings.TrimSpace(c.Message().Payload)
	if label == "" {
		return c.Send("Usage: /setbutton <label>")
	}
	if err := r.st.SetSetting(ctx, store.SettingGlobalButtonLabel, label); err != nil {
		return err
	}
	return c.Send("Global button label updated.")
}

func (r *Router) handleNewTrack(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	name := strings.TrimSpace(c.Message().Payload)
	if name == "" {
		return c.Send("Usage: /newtrack <name>")
	}
	trackingID := uuid.NewString()
	if _, err := r.st.CreateTrackingLink(ctx, name, trackingID); err != nil {
		return err
	}
	r.log.Info("tracking link created", logx.String("name", name), logx.String("tracking_id", trackingID))
	return c.Send(fmt.Sprintf("https://t.me/%s?start=%s", r.bot.Me.Username, trackingID))
}

func (r *Router) handleTracks(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	links, err := r.st.ListTrackingLinks(ctx)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return c.Send("No tracking links.")
	}
	var b strings.Builder
	b.WriteString("Tracking links:\n")
	for _, l := range links {
		fmt.Fprintf(&b, "%s: %d starts, %d unique\nhttps://t.me/%s?start=%s\n",
			l.Name, l.Starts, l.UniqueUsers, r.bot.Me.Username, l.TrackingID)
	}
	return c.Send(b.String())
}

func (r *Router) handleDelTrack(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	args := c.Args()
	if len(args) == 0 {
		return c.Send("Usage: /deltrack <tracking_id>")
	}
	if err := r.st.DeleteTrackingLink(ctx, args[0]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Send("No such tracking link.")
		}
		return err
	}
	return c.Send("Tracking link deleted.")
}

// handleGroupAdd registers the chat the command was sent in.
func (r *Router) handleGroupAdd(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	chat := c.Chat()
	if chat == nil || (chat.Type != tele.ChatGroup && chat.Type != tele.ChatSuperGroup) {
		return c.Send("Send /groupadd inside the group to register it.")
	}
	if err := r.st.UpsertGroup(ctx, chat.ID, chat.Title); err != nil {
		return err
	}
	r.log.Info("group registered", logx.Int64("chat_id", chat.ID), logx.String("title", chat.Title))
	return c.Send("Group registered. Join requests will be auto-approved.")
}

// handleGroupToggle flips auto-approval for the chat id given as an argument,
// or for the current chat when called inside a group.
func (r *Router) handleGroupToggle(enabled bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		var chatID int64
		if args := c.Args(); len(args) > 0 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return c.Send(fmt.Sprintf("bad chat id %q", args[0]))
			}
			chatID = id
		} else if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}

		if err := r.st.SetGroupEnabled(ctx, chatID, enabled); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.Send("That group is not registered. Use /groupadd first.")
			}
			return err
		}
		if enabled {
			return c.Send("Auto-approval enabled.")
		}
		return c.Send("Auto-approval disabled.")
	}
}

func (r *Router) handleGroups(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	groups, err := r.st.ListGroups(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return c.Send("No groups registered.")
	}
	var b strings.Builder
	b.WriteString("Groups:\n")
	for _, g := range groups {
		state := "off"
		if g.Enabled {
			state = "on"
		}
		fmt.Fprintf(&b, "%d %s (%s)\n", g.ChatID, g.Title, state)
	}
	return c.Send(b.String())
}
