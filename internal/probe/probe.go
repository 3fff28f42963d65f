// Package probe checks console reachability without spending a browser
// session. It runs before the first workflow and backs the readiness
// endpoint.
package probe

import (
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"domotica-bridge/internal/domotica"
)

// Probe fetches the console's login page with a plain HTTP client and
// verifies the login form is being served. A reachable host serving a
// maintenance page fails the probe just like a dead one.
type Probe struct {
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a probe against the console's base URL.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Probe {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Probe{baseURL: baseURL, timeout: timeout, logger: logger}
}

// Check fetches the login page and looks for its password field.
func (p *Probe) Check() error {
	c := colly.NewCollector(colly.AllowURLRevisit())
	c.SetRequestTimeout(p.timeout)

	formFound := false
	c.OnHTML(`input[type="password"]`, func(*colly.HTMLElement) {
		formFound = true
	})

	var fetchErr error
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(p.baseURL); err != nil {
		return fmt.Errorf("%w: probe %s: %v", domotica.ErrConnection, p.baseURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return fmt.Errorf("%w: probe %s: %v", domotica.ErrConnection, p.baseURL, fetchErr)
	}
	if !formFound {
		return fmt.Errorf("%w: %s is up but not serving the login form", domotica.ErrConnection, p.baseURL)
	}
	p.logger.Debug("console login form reachable", zap.String("base_url", p.baseURL))
	return nil
}
