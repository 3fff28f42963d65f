// Package events carries table change notifications from the sync loop
// to sinks and live subscribers.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"domotica-bridge/internal/domotica"
)

// Type names the kind of change an event reports.
type Type string

// Event types.
const (
	TypeTableUpdate Type = "table_update"
)

// Event is one published change notification. Mesas holds only the
// tables that changed in the cycle, in scrape order.
type Event struct {
	ID     string          `json:"id"`
	TS     time.Time       `json:"ts"`
	Evento Type            `json:"evento"`
	Seq    uint64          `json:"seq"`
	Mesas  []domotica.Mesa `json:"mesas"`
}

// NewTableUpdate builds an event for one sync cycle's changes.
func NewTableUpdate(now time.Time, seq uint64, mesas []domotica.Mesa) Event {
	return Event{
		ID:     uuid.NewString(),
		TS:     now,
		Evento: TypeTableUpdate,
		Seq:    seq,
		Mesas:  mesas,
	}
}

// Validate rejects events that would be meaningless downstream.
func (e Event) Validate() error {
	if e.Evento == "" {
		return fmt.Errorf("event has no type")
	}
	if len(e.Mesas) == 0 {
		return fmt.Errorf("event %s carries no mesas", e.Evento)
	}
	return nil
}
