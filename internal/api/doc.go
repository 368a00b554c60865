// Package api exposes task operations to the CLI and the daemon HTTP
// surface. TaskService wraps the queue store with validation and
// result retrieval; Server publishes the same operations over HTTP.
package api
