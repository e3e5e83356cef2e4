package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Defaults  DefaultsConfig  `json:"defaults,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty in the file; cmd/bot also accepts
	// PROMOBOT_TOKEN from the environment (.env supported).
	Token        string  `json:"token,omitempty"`
	AdminUserIDs []int64 `json:"admin_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// RatePerSec caps outgoing sends across all fan-outs. 0 means default.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the sqlite database.
type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite busy_timeout pragma).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SchedulerConfig controls the tick loop.
//
// All durations are Go duration strings (e.g. "500ms", "5s", "1m").
// Defaults (when fields are omitted/zero):
//   - poll_period: "5s"
//   - timezone: system local time
type SchedulerConfig struct {
	PollPeriod string `json:"poll_period,omitempty"`
	// Timezone is an IANA name (e.g. "Europe/Moscow") used for weekly
	// day-of-week/time-of-day matching.
	Timezone string `json:"timezone,omitempty"`
}

// BroadcastConfig controls fan-out behaviour.
//
// Defaults: page_size 1000, workers 1 (sequential delivery).
type BroadcastConfig struct {
	PageSize int `json:"page_size,omitempty"`
	Workers  int `json:"workers,omitempty"`
}

// DefaultsConfig seeds the process-wide fallbacks used when a post has no
// link/button override and no value is stored in settings.
type DefaultsConfig struct {
	Link        string `json:"link,omitempty"`
	ButtonLabel string `json:"button_label,omitempty"`
}
