package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify pipeline failures. Lookup and dispatch
// failures isolate to the affected show; fatal errors abort the run.
var (
	ErrLookup   = errors.New("lookup failure")
	ErrDispatch = errors.New("dispatch failure")
	ErrFatal    = errors.New("fatal failure")
)

// Wrap tags an error with a classification marker and step context. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, step, message string, err error) error {
	detail := buildDetail(step, message)
	if marker == nil {
		marker = ErrFatal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsIsolated reports whether the error only affects a single show and the
// run should continue with the rest.
func IsIsolated(err error) bool {
	return errors.Is(err, ErrLookup) || errors.Is(err, ErrDispatch)
}

func buildDetail(step, message string) string {
	parts := make([]string, 0, 2)
	if step = strings.TrimSpace(step); step != "" {
		parts = append(parts, step)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
