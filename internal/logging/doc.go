// Package logging wires log/slog with clipforge conventions: a JSON handler
// for machine consumption, a compact console handler for interactive use,
// multi-destination output, and context-derived task/process/stage fields.
package logging
