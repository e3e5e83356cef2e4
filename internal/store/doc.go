// Package store is the sqlite persistence layer.
//
// It owns every entity the engine touches: posts and their delivery stats,
// one-off and weekly schedules, subscribers, global settings, tracking links
// and auto-approve groups. The schema lives in migrations.sql and is applied
// idempotently at Open().
package store
