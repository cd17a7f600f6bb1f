package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
	// ErrWarning marks stage conditions that only abort the run under the
	// fail-early policy, such as a stage finding no items to process.
	ErrWarning = errors.New("warning")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Warn is shorthand for Wrap(ErrWarning, stage, "", message, nil).
func Warn(stage, message string) error {
	return Wrap(ErrWarning, stage, "", message, nil)
}

// IsWarning reports whether err only carries warning severity.
func IsWarning(err error) bool {
	return err != nil && errors.Is(err, ErrWarning)
}

// Message strips the marker prefix so logs can show the human-readable part.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{ErrWarning, ErrValidation, ErrConfiguration, ErrExternalTool, ErrNotFound, ErrTransient} {
		if errors.Is(err, marker) {
			msg = strings.TrimPrefix(msg, marker.Error()+": ")
			break
		}
	}
	return msg
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
