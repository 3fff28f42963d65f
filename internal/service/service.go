// Package service is the facade over the browser session and its
// workflows. Every public method takes the session slot for its whole
// duration, so concurrent callers serialize in arrival order.
package service

import (
	"context"

	"go.uber.org/zap"

	"domotica-bridge/internal/domotica"
	"domotica-bridge/internal/navigator"
	"domotica-bridge/internal/orders"
	"domotica-bridge/internal/scraper"
)

// SessionHandle is the slice of browser.Session the facade drives.
type SessionHandle interface {
	Open(ctx context.Context, creds domotica.Credentials) error
	Acquire(ctx context.Context) (func(), error)
	TryAcquire() (func(), error)
	Driver() domotica.Driver
	IsOpen() bool
	Close()
}

// Service wires the navigator, scraper and inserter over one session.
type Service struct {
	session SessionHandle
	creds   domotica.Credentials
	retry   domotica.RetryPolicy
	logger  *zap.Logger

	nav      *navigator.Navigator
	scraper  *scraper.Scraper
	inserter *orders.Inserter
}

// New creates the facade. The browser starts lazily on first use.
func New(session SessionHandle, creds domotica.Credentials, retry domotica.RetryPolicy, logger *zap.Logger) *Service {
	return &Service{
		session: session,
		creds:   creds,
		retry:   retry,
		logger:  logger,
	}
}

// ensureOpen launches the browser and builds the workflow objects on
// first use. Called with the slot held.
func (s *Service) ensureOpen(ctx context.Context) error {
	if s.session.IsOpen() {
		return nil
	}
	if err := s.session.Open(ctx, s.creds); err != nil {
		return err
	}
	drv := s.session.Driver()
	s.nav = navigator.New(drv, s.creds, s.retry, s.logger)
	s.scraper = scraper.New(drv, s.nav, s.retry, s.logger)
	s.inserter = orders.New(drv, s.nav, s.retry, s.logger)
	return nil
}

// toTableList reaches the table list from wherever the last workflow
// left the session.
func (s *Service) toTableList(ctx context.Context) error {
	if err := s.nav.Login(ctx); err != nil {
		return err
	}
	switch s.nav.State() {
	case domotica.InTableList:
		return nil
	case domotica.InComanda:
		return s.nav.BackToMesas(ctx)
	}
	if err := s.nav.ToPanel(ctx); err != nil {
		return err
	}
	return s.nav.ToMesas(ctx)
}

// Mesas scrapes the current table state. The session stays logged in
// on the table list afterwards so the poll loop pays login only once.
func (s *Service) Mesas(ctx context.Context) ([]domotica.Mesa, error) {
	release, err := s.session.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}
	if err := s.toTableList(ctx); err != nil {
		s.recover(ctx, err)
		return nil, err
	}
	mesas, err := s.scraper.ScrapeMesas(ctx)
	if err != nil {
		s.recover(ctx, err)
		return nil, err
	}
	return mesas, nil
}

// SnapshotMesas is Mesas under the name the sync loop consumes.
func (s *Service) SnapshotMesas(ctx context.Context) ([]domotica.Mesa, error) {
	return s.Mesas(ctx)
}

// Productos scrapes the menu through the first free table's comanda
// screen. An empty categoria returns the whole menu. Unlike Mesas this
// logs out afterwards, since the comanda screen must not be left open.
func (s *Service) Productos(ctx context.Context, categoria string) ([]domotica.Producto, error) {
	release, err := s.session.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}
	if err := s.toTableList(ctx); err != nil {
		s.recover(ctx, err)
		return nil, err
	}
	defer s.nav.Logout(ctx)

	if err := s.nav.ToComandaLibre(ctx); err != nil {
		return nil, err
	}
	if categoria == "" {
		return s.scraper.ScrapeCarta(ctx)
	}
	return s.scraper.ScrapeProductos(ctx, categoria)
}

// InsertComanda places an order. Validation runs before the slot is
// taken so malformed requests never wait behind a running workflow.
func (s *Service) InsertComanda(ctx context.Context, req domotica.ComandaRequest) (domotica.ComandaOutcome, error) {
	if err := req.Validate(); err != nil {
		return domotica.ComandaOutcome{}, err
	}

	release, err := s.session.Acquire(ctx)
	if err != nil {
		return domotica.ComandaOutcome{}, err
	}
	defer release()

	if err := s.ensureOpen(ctx); err != nil {
		return domotica.ComandaOutcome{}, err
	}
	return s.inserter.Insert(ctx, req)
}

// Busy reports whether a workflow currently holds the session.
func (s *Service) Busy() bool {
	release, err := s.session.TryAcquire()
	if err != nil {
		return true
	}
	release()
	return false
}

// Close shuts the browser down.
func (s *Service) Close() {
	s.session.Close()
}

// recover logs out after a failed workflow so the next one starts from
// a known screen instead of inheriting a half-finished one.
func (s *Service) recover(ctx context.Context, cause error) {
	if s.nav == nil || s.nav.State() == domotica.LoggedOut {
		return
	}
	s.logger.Warn("workflow failed, resetting session", zap.Error(cause))
	s.nav.Logout(ctx)
}
