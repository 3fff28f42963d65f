// Package browser owns the headless Chrome session backing all console
// workflows. Exactly one tab exists per session and a capacity-one slot
// serializes the workflows that use it.
package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"domotica-bridge/internal/domotica"
)

// Config controls the headless session.
type Config struct {
	Headless    bool
	StepTimeout time.Duration
	UserAgent   string
}

// Session is a single headless browser tab plus the slot that serializes
// access to it. Zero value is not usable; construct with New and call
// Open before handing out the driver.
type Session struct {
	cfg    Config
	logger *zap.Logger

	slot chan struct{}

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	driver      *chromedpDriver

	open      atomic.Bool
	closeOnce sync.Once
}

// New creates a session. The browser process is not started until Open.
func New(cfg Config, logger *zap.Logger) *Session {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 15 * time.Second
	}
	return &Session{
		cfg:    cfg,
		logger: logger,
		slot:   make(chan struct{}, 1),
	}
}

// Open launches the browser and navigates to the console's base URL. It
// does not log in; that is the Navigator's job. Calling Open on an open
// session is an error.
func (s *Session) Open(ctx context.Context, creds domotica.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	if s.open.Load() {
		return fmt.Errorf("session already open")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if s.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}

	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	s.tabCtx, s.tabCancel = chromedp.NewContext(s.allocCtx)

	// The Vuetify console swallows its own errors; surfacing page
	// exceptions in the log is the only way to see them.
	chromedp.ListenTarget(s.tabCtx, func(ev any) {
		if ex, ok := ev.(*runtime.EventExceptionThrown); ok {
			s.logger.Debug("page exception", zap.String("detail", ex.ExceptionDetails.Error()))
		}
	})

	s.driver = &chromedpDriver{
		tab:         s.tabCtx,
		stepTimeout: s.cfg.StepTimeout,
	}

	if err := s.driver.Navigate(ctx, creds.BaseURL); err != nil {
		s.tabCancel()
		s.allocCancel()
		return fmt.Errorf("%w: open %s: %v", domotica.ErrConnection, creds.BaseURL, err)
	}

	s.open.Store(true)
	s.logger.Info("browser session open",
		zap.String("base_url", creds.BaseURL),
		zap.Bool("headless", s.cfg.Headless),
	)
	return nil
}

// Acquire takes the session slot, blocking in arrival order until it is
// free or ctx ends. The returned release function is safe to call more
// than once; only the first call frees the slot.
func (s *Session) Acquire(ctx context.Context) (func(), error) {
	select {
	case s.slot <- struct{}{}:
		return s.releaser(), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("session slot wait canceled: %w", ctx.Err())
	}
}

// TryAcquire takes the slot without blocking. It reports ErrSessionBusy
// when another workflow holds it.
func (s *Session) TryAcquire() (func(), error) {
	select {
	case s.slot <- struct{}{}:
		return s.releaser(), nil
	default:
		return nil, domotica.ErrSessionBusy
	}
}

// releaser binds the release to the acquisition that earned it. A stray
// second call must not drain a token some other workflow now holds.
func (s *Session) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-s.slot })
	}
}

// Driver returns the DOM driver bound to the session tab. Callers must
// hold the slot while using it.
func (s *Session) Driver() domotica.Driver {
	return s.driver
}

// IsOpen reports whether the browser is running.
func (s *Session) IsOpen() bool {
	return s.open.Load()
}

// Close tears down the tab and the browser process. Safe to call more
// than once and on a session that never opened.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.open.Store(false)
		if s.tabCancel != nil {
			s.tabCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
		s.logger.Info("browser session closed")
	})
}
