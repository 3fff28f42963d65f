package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"domotica-bridge/internal/domotica"
)

// chromedpDriver implements domotica.Driver against one chromedp tab.
// Every call gets its own deadline derived from the step timeout, so a
// hung wait never stalls the whole workflow budget.
type chromedpDriver struct {
	tab         context.Context
	stepTimeout time.Duration
}

var _ domotica.Driver = (*chromedpDriver)(nil)

func (d *chromedpDriver) run(ctx context.Context, step string, actions ...chromedp.Action) error {
	stepCtx, cancel := d.withStepDeadline(ctx)
	defer cancel()

	if err := chromedp.Run(stepCtx, actions...); err != nil {
		return classify(step, err)
	}
	return nil
}

// withStepDeadline merges the caller's cancellation with the tab context
// and applies the per-step timeout. chromedp.Run needs the tab context
// to find the target, so the caller's ctx only contributes cancellation.
func (d *chromedpDriver) withStepDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	stepCtx, cancel := context.WithTimeout(d.tab, d.stepTimeout)
	stop := context.AfterFunc(ctx, cancel)
	return stepCtx, func() {
		stop()
		cancel()
	}
}

func (d *chromedpDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, "navigate "+url,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (d *chromedpDriver) WaitVisible(ctx context.Context, sel string) error {
	return d.run(ctx, "wait "+sel, chromedp.WaitVisible(sel, queryOpt(sel)))
}

func (d *chromedpDriver) Click(ctx context.Context, sel string) error {
	return d.run(ctx, "click "+sel, chromedp.Click(sel, queryOpt(sel)))
}

func (d *chromedpDriver) SendKeys(ctx context.Context, sel, value string) error {
	return d.run(ctx, "type "+sel, chromedp.SendKeys(sel, value, queryOpt(sel)))
}

func (d *chromedpDriver) Clear(ctx context.Context, sel string) error {
	return d.run(ctx, "clear "+sel, chromedp.Clear(sel, queryOpt(sel)))
}

func (d *chromedpDriver) Text(ctx context.Context, sel string) (string, error) {
	var out string
	if err := d.run(ctx, "text "+sel, chromedp.Text(sel, &out, queryOpt(sel))); err != nil {
		return "", err
	}
	return out, nil
}

func (d *chromedpDriver) OuterHTML(ctx context.Context, sel string) (string, error) {
	var out string
	if err := d.run(ctx, "html "+sel, chromedp.OuterHTML(sel, &out, queryOpt(sel))); err != nil {
		return "", err
	}
	return out, nil
}

func (d *chromedpDriver) Location(ctx context.Context) (string, error) {
	var out string
	if err := d.run(ctx, "location", chromedp.Location(&out)); err != nil {
		return "", err
	}
	return out, nil
}

// queryOpt picks the chromedp query strategy from the selector shape.
// XPath selectors start with "/" or "(", everything else is CSS.
func queryOpt(sel string) chromedp.QueryOption {
	if strings.HasPrefix(sel, "/") || strings.HasPrefix(sel, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// classify maps raw chromedp failures onto the session error taxonomy.
// Timeouts mean the expected DOM never appeared; detached or missing
// nodes mean the page re-rendered under us and the step can be retried.
func classify(step string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", domotica.ErrNavigation, step, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", step, err)
	case isStaleNode(err):
		return fmt.Errorf("%w: %s: %v", domotica.ErrStaleElement, step, err)
	default:
		return fmt.Errorf("%w: %s: %v", domotica.ErrNavigation, step, err)
	}
}

func isStaleNode(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "could not find node") ||
		strings.Contains(msg, "node not found") ||
		strings.Contains(msg, "not attached to the document") ||
		strings.Contains(msg, "no node found")
}
