package sinks

import (
	"context"
	"fmt"

	"domotica-bridge/internal/events"
)

// Recorder persists one event. Implemented by the Postgres journal.
type Recorder interface {
	RecordEvent(ctx context.Context, evt events.Event) error
	Close()
}

// StoreSink journals events through a Recorder.
type StoreSink struct {
	rec Recorder
}

// NewStore creates a StoreSink.
func NewStore(rec Recorder) *StoreSink {
	return &StoreSink{rec: rec}
}

// Consume persists the event.
func (s *StoreSink) Consume(ctx context.Context, evt events.Event) error {
	if err := s.rec.RecordEvent(ctx, evt); err != nil {
		return fmt.Errorf("journal event %s: %w", evt.ID, err)
	}
	return nil
}

// Close releases the recorder's connections.
func (s *StoreSink) Close(context.Context) error {
	s.rec.Close()
	return nil
}
