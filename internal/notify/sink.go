// Package notify delivers user-facing error notifications. The agent
// isolates per-project failures and reports each one through a Sink instead
// of aborting the batch.
package notify

import "github.com/rs/zerolog"

// Sink receives error notifications. Implementations must be safe for
// concurrent use and must not block the caller for long.
type Sink interface {
	// Error reports a failure. id is a stable identifier for the kind of
	// failure so receivers can group or dedupe.
	Error(id, title, message string)
}

// LogSink writes notifications to the structured log.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink logging at warn level.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notify").Logger()}
}

func (s *LogSink) Error(id, title, message string) {
	s.logger.Warn().Str("id", id).Str("title", title).Msg(message)
}

// MultiSink fans a notification out to several sinks.
type MultiSink []Sink

func (m MultiSink) Error(id, title, message string) {
	for _, s := range m {
		s.Error(id, title, message)
	}
}
