// Package sinks contains the event sink implementations wired into the
// hub at startup.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"domotica-bridge/internal/events"
)

// LogSink writes every event to the structured log. Always wired; it is
// the baseline audit trail when the journal is disabled.
type LogSink struct {
	logger *zap.Logger
}

// NewLog creates a LogSink.
func NewLog(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Consume logs the event.
func (s *LogSink) Consume(_ context.Context, evt events.Event) error {
	s.logger.Info("table update",
		zap.String("event_id", evt.ID),
		zap.Uint64("seq", evt.Seq),
		zap.Int("changed", len(evt.Mesas)),
		zap.Time("ts", evt.TS),
	)
	return nil
}

// Close implements events.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
