package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks failures caused by a missing file, task, or artifact.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks hash or signature mismatches and other integrity failures.
	ErrValidation = errors.New("validation error")
	// ErrTransport marks remote upload or publish transport failures.
	ErrTransport = errors.New("transport error")
	// ErrCancelled marks cooperative aborts requested by the user.
	ErrCancelled = errors.New("cancelled")
	// ErrStage wraps opaque failures raised by stage collaborators.
	ErrStage = errors.New("stage failure")
	// ErrConfiguration marks unusable configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrStage
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// ErrorDetails captures presentation-ready information about a failure.
type ErrorDetails struct {
	Kind    string
	Message string
}

// Details classifies an error for status persistence and operator display.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: "stage", Message: strings.TrimSpace(err.Error())}
	switch {
	case errors.Is(err, ErrNotFound):
		details.Kind = "not_found"
	case errors.Is(err, ErrValidation):
		details.Kind = "validation"
	case errors.Is(err, ErrTransport):
		details.Kind = "transport"
	case errors.Is(err, ErrCancelled):
		details.Kind = "cancelled"
	case errors.Is(err, ErrConfiguration):
		details.Kind = "configuration"
	}
	return details
}
