// Package engine runs jobs asynchronously. It resolves runners via the
// registry, honours submission delays on an injectable clock, enforces
// timeouts via context deadlines, and records each job's lifecycle and log
// lines in the store as they happen.
package engine
