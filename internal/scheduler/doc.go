// Package scheduler discovers due work and runs it through the broadcast
// dispatcher.
//
// One goroutine polls on a fixed cadence. Each iteration resolves due one-off
// schedules (next_run_at has passed) and, once per wall-clock minute, weekly
// schedules (weekday bit + exact hour:minute match, deduped per calendar day).
//
// Rescheduling is phase-preserving: a repeating schedule's next fire time is
// computed from its previous scheduled time, not from the clock, so a delayed
// tick never skews the cadence. Weekly schedules are only discoverable during
// their target minute; a minute the process sleeps through is not caught up.
package scheduler
