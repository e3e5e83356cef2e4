// Package broadcast fans a single post out to every active subscriber.
//
// Subscribers are enumerated in fixed-size pages to bound memory, and each
// delivery outcome is classified into exactly one of delivered, permanently
// unreachable (recipient deactivated and excluded from future fan-outs) or
// transient failure (logged, skipped, never retried within the same fan-out).
//
// Delivery is best-effort, at most once per fan-out per recipient. The
// per-post delivered counter is bumped by the fan-out total in one write.
package broadcast
