package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFetch          = errors.New("fetch error")
	ErrStale          = errors.New("stale payload")
	ErrParse          = errors.New("parse error")
	ErrProbeTimeout   = errors.New("probe timeout")
	ErrProbeRejected  = errors.New("probe rejected")
	ErrProcessFailure = errors.New("process failure")
	ErrConfiguration  = errors.New("configuration error")
)

// Kind labels used in summaries and run history.
const (
	KindFetch          = "fetch_error"
	KindStale          = "stale"
	KindParse          = "parse_error"
	KindProbeTimeout   = "probe_timeout"
	KindProbeRejected  = "probe_rejected"
	KindProcessFailure = "process_failure"
	KindConfiguration  = "configuration"
	KindUnknown        = "unknown"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrFetch
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to its taxonomy label. Nil maps to the empty string.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProbeTimeout):
		return KindProbeTimeout
	case errors.Is(err, ErrProbeRejected):
		return KindProbeRejected
	case errors.Is(err, ErrProcessFailure):
		return KindProcessFailure
	case errors.Is(err, ErrStale):
		return KindStale
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrFetch):
		return KindFetch
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindUnknown
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
