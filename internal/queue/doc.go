// Package queue persists conversion tasks in SQLite and hands them to
// workers through an atomic lease. The store is the only resource shared
// across worker processes; every claim is a single conditional
// read-modify-write so no two workers can receive the same task.
//
// A worker that dies without a shutdown signal leaves its task in
// processing. The store does not reap such tasks automatically; operators
// run "clipforge queue reset" or an external reaper.
package queue
