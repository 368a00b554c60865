// Package daemon wires the queue store, worker, and HTTP API into a
// single long-running process guarded by a file lock, and runs startup
// preflight checks over directories, disk space, and the queue
// database.
package daemon
