package model

import (
	"errors"
	"fmt"
)

// ConfigError is a malformed mapping document or option set. Fatal at
// load time, surfaced before any restore attempt.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError is a network/timeout/auth failure at the batch-call
// level, distinct from per-record rejections. Retried with backoff.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a transport-level failure and
// therefore worth retrying.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ValidationError is a schema/mapping inconsistency detected before any
// write begins. Aborts the affected object only.
type ValidationError struct {
	ObjectName string
	Problems   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d validation problems", e.ObjectName, len(e.Problems))
}
