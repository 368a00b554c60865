// Package audit maintains a durable per-process audit trail. Every
// recorded event is flushed to disk immediately in two synchronized
// renderings, a structured audit.json and a human-readable audit.log,
// so that a crash at any point leaves a consistent record of
// everything that happened up to it.
package audit
