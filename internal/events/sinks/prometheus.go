package sinks

import (
	"context"

	"domotica-bridge/internal/events"
	"domotica-bridge/internal/metrics"
)

// PromSink counts published events in the Prometheus registry.
type PromSink struct{}

// NewProm creates a PromSink. metrics.Init must have run.
func NewProm() *PromSink {
	return &PromSink{}
}

// Consume increments the event counter.
func (PromSink) Consume(_ context.Context, _ events.Event) error {
	if metrics.TableEvents != nil {
		metrics.TableEvents.Inc()
	}
	return nil
}

// Close implements events.Sink.
func (PromSink) Close(context.Context) error {
	return nil
}
