package events

import "context"

// Sink receives every published event. Implementations must tolerate
// being called from the hub's single delivery goroutine and should
// respect the context deadline.
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}
