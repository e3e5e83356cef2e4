package app

import (
	"context"

	"promobot/internal/config"
	"promobot/internal/store"
)

// defaultButtonLabel is the last-resort label when neither the settings table
// nor the config defaults provide one.
const defaultButtonLabel = "Claim bonus"

// settingsResolver resolves global payload fallbacks: the settings table wins,
// then the config defaults. The config manager is consulted on every call so
// hot-reloaded defaults take effect without a restart.
type settingsResolver struct {
	st  *store.Store
	mgr *config.Manager
}

func (r *settingsResolver) GlobalLink(ctx context.Context) (string, error) {
	v, ok, err := r.st.GetSetting(ctx, store.SettingGlobalLink)
	if err != nil {
		return "", err
	}
	if ok && v != "" {
		return v, nil
	}
	if cfg := r.mgr.Get(); cfg != nil {
		return cfg.Defaults.Link, nil
	}
	return "", nil
}

func (r *settingsResolver) GlobalButtonLabel(ctx context.Context) (string, error) {
	v, ok, err := r.st.GetSetting(ctx, store.SettingGlobalButtonLabel)
	if err != nil {
		return "", err
	}
	if ok && v != "" {
		return v, nil
	}
	if cfg := r.mgr.Get(); cfg != nil && cfg.Defaults.ButtonLabel != "" {
		return cfg.Defaults.ButtonLabel, nil
	}
	return defaultButtonLabel, nil
}
