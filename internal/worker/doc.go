// Package worker runs the background conversion loop. A Worker polls
// the queue, leases one task at a time, and drives it through the six
// pipeline stages while maintaining the per-process audit trail,
// integrity ledger, and artifact manifest. Stage failures mark the
// task failed and return the worker to polling; they never bring the
// process down. Cancellation is cooperative and honored at stage
// boundaries.
package worker
