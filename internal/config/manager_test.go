package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
telegram:
  admin_user_ids: [101, 202]
  poll_timeout: 10s
  rate_per_sec: 20
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
storage:
  path: /tmp/promo.db
  busy_timeout: 5s
scheduler:
  poll_period: 5s
  timezone: Europe/Moscow
broadcast:
  page_size: 500
  workers: 2
defaults:
  link: https://example.com
  button_label: Open
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", validYAML)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Telegram.AdminUserIDs) != 2 || cfg.Telegram.AdminUserIDs[1] != 202 {
		t.Fatalf("AdminUserIDs = %v", cfg.Telegram.AdminUserIDs)
	}
	if cfg.Broadcast.PageSize != 500 || cfg.Broadcast.Workers != 2 {
		t.Fatalf("broadcast = %+v", cfg.Broadcast)
	}
	if cfg.Scheduler.Timezone != "Europe/Moscow" {
		t.Fatalf("timezone = %q", cfg.Scheduler.Timezone)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
storage:
  path: /tmp/promo.db
typo_section:
  foo: 1
`)
	m := NewManager(path)
	if _, err := m.Load(); err == nil {
		t.Fatal("unknown section accepted")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json",
		`{"telegram":{"admin_user_ids":[1]},"logging":{"level":"info","console":true,"file":{"enabled":false,"path":""}},"storage":{"path":"/tmp/p.db"},"scheduler":{},"broadcast":{}}`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "/tmp/p.db" {
		t.Fatalf("path = %q", cfg.Storage.Path)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Storage:   StorageConfig{Path: "/tmp/p.db"},
			Scheduler: SchedulerConfig{PollPeriod: "5s", Timezone: "UTC"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing storage path", mutate: func(c *Config) { c.Storage.Path = "" }, wantErr: true},
		{name: "bad poll period", mutate: func(c *Config) { c.Scheduler.PollPeriod = "five seconds" }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "negative page size", mutate: func(c *Config) { c.Broadcast.PageSize = -1 }, wantErr: true},
		{name: "negative workers", mutate: func(c *Config) { c.Broadcast.Workers = -2 }, wantErr: true},
		{name: "negative rate", mutate: func(c *Config) { c.Telegram.RatePerSec = -5 }, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	d, err := ParseDurationField("x", " 90s ")
	if err != nil || d != 90*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("negative duration accepted")
	}
	if _, err := ParseDurationField("scheduler.poll_period", "nope"); err == nil {
		t.Fatal("garbage accepted")
	} else if !strings.Contains(err.Error(), "scheduler.poll_period") {
		t.Fatalf("error does not name the field: %v", err)
	}

	if d, err := ParseDurationOrDefault("x", "", 5*time.Second); err != nil || d != 5*time.Second {
		t.Fatalf("default: got %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "2s", 5*time.Second); err != nil || d != 2*time.Second {
		t.Fatalf("explicit: got %v, %v", d, err)
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")

	sub := m.Subscribe(1)
	cfg := &Config{}
	m.publish(cfg)

	select {
	case got := <-sub:
		if got != cfg {
			t.Fatal("received a different config")
		}
	default:
		t.Fatal("no config published")
	}

	// A full buffer drops the stale item rather than blocking.
	m.publish(&Config{Storage: StorageConfig{Path: "a"}})
	newest := &Config{Storage: StorageConfig{Path: "b"}}
	m.publish(newest)
	select {
	case got := <-sub:
		if got.Storage.Path != "b" {
			t.Fatalf("got stale config %q", got.Storage.Path)
		}
	default:
		t.Fatal("no config published")
	}

	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel not closed by Unsubscribe")
	}
}
