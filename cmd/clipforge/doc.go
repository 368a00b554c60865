// Command clipforge is the CLI for the clipforge conversion daemon. It
// submits and tracks conversion tasks over the daemon HTTP API and
// provides queue maintenance commands that operate on the queue
// database directly.
package main
