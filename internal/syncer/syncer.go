// Package syncer polls the console for table state and publishes the
// differences as events.
package syncer

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"domotica-bridge/internal/domotica"
	"domotica-bridge/internal/events"
	"domotica-bridge/internal/metrics"
)

// Source produces one full table scrape. The service facade implements
// it; the session slot is taken and released inside the call, so the
// syncer never holds the session between cycles.
type Source interface {
	SnapshotMesas(ctx context.Context) ([]domotica.Mesa, error)
}

// Publisher accepts change events. Satisfied by the events hub.
type Publisher interface {
	Publish(evt events.Event)
}

// Syncer owns the poll loop and the latest snapshot.
type Syncer struct {
	src      Source
	pub      Publisher
	clock    domotica.Clock
	logger   *zap.Logger
	interval time.Duration
	kick     chan struct{}

	mu   sync.RWMutex
	snap domotica.Snapshot
}

// New creates a syncer. Run starts the loop.
func New(src Source, pub Publisher, clock domotica.Clock, interval time.Duration, logger *zap.Logger) *Syncer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Syncer{
		src:      src,
		pub:      pub,
		clock:    clock,
		logger:   logger,
		interval: interval,
		kick:     make(chan struct{}, 1),
		snap:     domotica.Snapshot{Mesas: map[string]domotica.Mesa{}},
	}
}

// Kick requests an immediate cycle ahead of the ticker. Non-blocking;
// a kick while one is already pending is folded into it.
func (s *Syncer) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Snapshot returns the latest successful scrape. The map is shared;
// callers must treat it as read-only.
func (s *Syncer) Snapshot() domotica.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Run cycles until ctx ends. The first cycle starts immediately.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		case <-s.kick:
			s.cycle(ctx)
		}
	}
}

// cycle scrapes once and publishes what changed. A failed scrape keeps
// the previous snapshot so a flaky console never looks like an empty
// restaurant.
func (s *Syncer) cycle(ctx context.Context) {
	start := time.Now()
	mesas, err := s.src.SnapshotMesas(ctx)
	metrics.ObserveCycle(time.Since(start), err)
	if err != nil {
		s.logger.Warn("scrape cycle failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	prev := s.snap

	// The metadata modal can fail for one cycle, returning mesas with
	// no zone. Carry the known zone forward so the blink is neither a
	// reported change nor a hole in the snapshot.
	for i := range mesas {
		if mesas[i].Zona != "" {
			continue
		}
		if old, ok := prev.Mesas[mesas[i].Identificador]; ok {
			mesas[i].Zona = old.Zona
		}
	}

	changed := diff(prev.Mesas, mesas)

	next := domotica.Snapshot{
		Seq:     prev.Seq + 1,
		TakenAt: s.clock.Now(),
		Mesas:   make(map[string]domotica.Mesa, len(mesas)),
	}
	for _, m := range mesas {
		next.Mesas[m.Identificador] = m
	}
	s.snap = next
	s.mu.Unlock()

	if metrics.MesasObserved != nil {
		metrics.MesasObserved.Set(float64(len(mesas)))
	}

	if len(changed) == 0 {
		return
	}
	s.logger.Info("table state changed",
		zap.Uint64("seq", next.Seq),
		zap.Int("changed", len(changed)),
	)
	s.pub.Publish(events.NewTableUpdate(next.TakenAt, next.Seq, changed))
}

// diff reports the tables that differ between the previous snapshot
// and the current scrape. Appearing tables count as changes. A table
// that vanished is reported once, as its last known record marked
// free, and then forgotten.
func diff(prev map[string]domotica.Mesa, current []domotica.Mesa) []domotica.Mesa {
	changed := make([]domotica.Mesa, 0)
	seen := make(map[string]struct{}, len(current))
	for _, m := range current {
		seen[m.Identificador] = struct{}{}
		old, ok := prev[m.Identificador]
		if !ok || old != m {
			changed = append(changed, m)
		}
	}

	removed := make([]domotica.Mesa, 0)
	for id, old := range prev {
		if _, ok := seen[id]; !ok {
			old.Ocupado = false
			removed = append(removed, old)
		}
	}
	sort.Slice(removed, func(i, j int) bool {
		return removed[i].Identificador < removed[j].Identificador
	})
	return append(changed, removed...)
}
