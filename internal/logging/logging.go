// Package logging defines the structured logging contract shared by every
// component in this module. Nothing outside cmd/ calls the standard log
// package or fmt.Println directly; everything logs through a LogService.
package logging

import "time"

// Level is one of the four severities every LogService implementation
// understands.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is a single structured log record. Component carries the name of
// the emitting component (e.g. "fsbridge", "cacheengine") so a single log
// stream can be filtered per component without per-component loggers.
type Event struct {
	Timestamp time.Time
	Component string
	Message   string
	Metadata  map[string]any
}

// Service is the logging contract every component depends on.
type Service interface {
	Debug(event Event)
	Info(event Event)
	Warn(event Event)
	Error(event Event)

	// With returns a Service that sets component on every event whose
	// Component field is empty,
	// so a subsystem can obtain a scoped logger once at construction time.
	With(component string) Service
}
