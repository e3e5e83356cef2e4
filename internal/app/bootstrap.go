package app

import (
	"context"
	"strconv"

	"promobot/internal/store"
	logx "promobot/pkg/logx"
)

// seed makes a fresh database usable: on the very first run it creates a
// welcome post and points the /start reply at it. Existing databases are left
// untouched.
func (a *App) seed(ctx context.Context) error {
	n, err := a.st.CountPosts(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	id, err := a.st.CreatePost(ctx, store.Post{
		Title: "Welcome",
		Kind:  store.KindText,
		Text:  "Welcome! Tap the button below to get started.",
	})
	if err != nil {
		return err
	}

	if _, ok, err := a.st.GetSetting(ctx, store.SettingWelcomePostID); err != nil {
		return err
	} else if !ok {
		if err := a.st.SetSetting(ctx, store.SettingWelcomePostID, strconv.FormatInt(id, 10)); err != nil {
			return err
		}
	}
	a.log.Info("seeded welcome post", logx.Int64("post_id", id))
	return nil
}
