package app

import (
	"context"
	"path/filepath"
	"testing"

	"promobot/internal/config"
	"promobot/internal/store"
	logx "promobot/pkg/logx"
)

func TestSettingsResolverPrecedence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	mgr := config.NewManager("unused")
	r := &settingsResolver{st: st, mgr: mgr}

	// Nothing anywhere: empty link, built-in label.
	link, err := r.GlobalLink(ctx)
	if err != nil || link != "" {
		t.Fatalf("link = %q, %v", link, err)
	}
	label, err := r.GlobalButtonLabel(ctx)
	if err != nil || label != defaultButtonLabel {
		t.Fatalf("label = %q, %v", label, err)
	}

	// Config defaults fill the gap.
	mgr.Commit(&config.Config{Defaults: config.DefaultsConfig{
		Link:        "https://cfg.example.com",
		ButtonLabel: "From config",
	}})
	if link, _ = r.GlobalLink(ctx); link != "https://cfg.example.com" {
		t.Fatalf("link = %q, want config default", link)
	}
	if label, _ = r.GlobalButtonLabel(ctx); label != "From config" {
		t.Fatalf("label = %q, want config default", label)
	}

	// The settings table wins over config.
	if err := st.SetSetting(ctx, store.SettingGlobalLink, "https://db.example.com"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := st.SetSetting(ctx, store.SettingGlobalButtonLabel, "From settings"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if link, _ = r.GlobalLink(ctx); link != "https://db.example.com" {
		t.Fatalf("link = %q, want stored setting", link)
	}
	if label, _ = r.GlobalButtonLabel(ctx); label != "From settings" {
		t.Fatalf("label = %q, want stored setting", label)
	}
}
