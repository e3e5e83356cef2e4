package router

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"promobot/internal/store"
)

func TestParseDaysMask(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{name: "single day", raw: "mon", want: 1 << 0},
		{name: "list", raw: "mon,wed", want: 1<<0 | 1<<2},
		{name: "case and spaces", raw: " Mon , SUN ", want: 1<<0 | 1<<6},
		{name: "daily", raw: "daily", want: 0b1111111},
		{name: "weekdays", raw: "weekdays", want: 0b0011111},
		{name: "weekends", raw: "weekends", want: 0b1100000},
		{name: "bit string", raw: "1010100", want: 1<<0 | 1<<2 | 1<<4},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDaysMask(tt.raw)
			if err != nil {
				t.Fatalf("parseDaysMask(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("parseDaysMask(%q) = %07b, want %07b", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDaysMaskInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "monday,funday", "0000000", "12:30"} {
		if _, err := parseDaysMask(raw); err == nil {
			t.Fatalf("parseDaysMask(%q) accepted invalid input", raw)
		}
	}
}

func TestFormatDaysMask(t *testing.T) {
	t.Parallel()
	if got := formatDaysMask(1<<0 | 1<<2); got != "Mon,Wed" {
		t.Fatalf("formatDaysMask = %q", got)
	}
	if got := formatDaysMask(0); got != "-" {
		t.Fatalf("formatDaysMask(0) = %q", got)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	h, m, err := parseTimeOfDay("23:05")
	if err != nil {
		t.Fatalf("parseTimeOfDay: %v", err)
	}
	if h != 23 || m != 5 {
		t.Fatalf("got %d:%d, want 23:05", h, m)
	}

	for _, raw := range []string{"24:00", "12:60", "noon", "12", "-1:30"} {
		if _, _, err := parseTimeOfDay(raw); err == nil {
			t.Fatalf("parseTimeOfDay(%q) accepted invalid input", raw)
		}
	}
}

func TestParseWhen(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	got, err := parseWhen("2026-12-01 18:30", loc)
	if err != nil {
		t.Fatalf("parseWhen: %v", err)
	}
	want := time.Date(2026, 12, 1, 18, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("parseWhen = %v, want %v", got, want)
	}

	if _, err := parseWhen("2026-12-01T18:30:00+03:00", loc); err != nil {
		t.Fatalf("parseWhen rejected RFC3339: %v", err)
	}
	if _, err := parseWhen("tomorrow", loc); err == nil {
		t.Fatal("parseWhen accepted garbage")
	}
}

func TestBuildPostFromPayload(t *testing.T) {
	t.Parallel()

	msg := &tele.Message{Payload: "Sale | Big discount today | https://example.com | Shop now"}
	p, err := buildPost(msg)
	if err != nil {
		t.Fatalf("buildPost: %v", err)
	}
	if p.Title != "Sale" || p.Text != "Big discount today" || p.Kind != store.KindText {
		t.Fatalf("post = %+v", p)
	}
	if p.LinkOverride != "https://example.com" || p.ButtonLabel != "Shop now" {
		t.Fatalf("overrides = %q/%q", p.LinkOverride, p.ButtonLabel)
	}

	if _, err := buildPost(&tele.Message{Payload: "TitleOnly"}); err == nil {
		t.Fatal("text post without text accepted")
	}
	if _, err := buildPost(&tele.Message{}); err == nil {
		t.Fatal("empty payload accepted")
	}
}

func TestBuildPostFromReplyMedia(t *testing.T) {
	t.Parallel()

	msg := &tele.Message{
		Payload: "Promo shot",
		ReplyTo: &tele.Message{
			Photo:   &tele.Photo{File: tele.File{FileID: "file-abc"}},
			Caption: "caption text",
		},
	}
	p, err := buildPost(msg)
	if err != nil {
		t.Fatalf("buildPost: %v", err)
	}
	if p.Kind != store.KindPhoto || p.MediaRef != "file-abc" {
		t.Fatalf("post = %+v, want photo with file id", p)
	}
	if p.Text != "caption text" {
		t.Fatalf("Text = %q, want caption carried over", p.Text)
	}
}
