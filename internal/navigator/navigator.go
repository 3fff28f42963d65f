// Package navigator drives the console UI through its legal screen
// transitions. It owns the session state machine: extraction and
// insertion code asks for a state, never for raw clicks.
package navigator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"domotica-bridge/internal/domotica"
	"domotica-bridge/internal/metrics"
)

// Console selectors. The panel is a Vuetify app, so most anchors are
// class or text based rather than ids.
const (
	selUserInput     = `input[type="text"]`
	selPassInput     = `input[type="password"]`
	selLoginButton   = `//button[contains(., "INICIAR SESION")]`
	panelURLFragment = "/panel"

	selPanelLandmark = `//div[contains(@class, "v-card--link")]`
	selMesasCard     = `//h4[contains(text(), 'Mesas')]`
	selMesasCardImg  = `//img[contains(@src, "mesa")]/ancestor::div[contains(@class, "v-card")]`
	selMesasLandmark = `//div[contains(@class, "v-card")]//h2`

	selCategoryCards = `//div[contains(@class, "hoverable") and contains(@class, "v-card--link")]`
	selBackArrow     = `//i[contains(@class, "mdi-arrow-left") and contains(@class, "red--text")]`

	selBurgerMenu   = `//i[contains(@class, "mdi-menu")]`
	selLogoutItem   = `//div[contains(@class, "v-list-item") and contains(., "Cerrar Sesion")]`
	freeCardColor   = "rgb(70, 255, 0)"
	mesaCardPattern = `//div[contains(@class, "v-card--link")][.//h2[normalize-space(text()) = %q]]`
	freeCardXPath   = `(//div[contains(@class, "v-card--link") and contains(@style, "` + freeCardColor + `")])[1]`
)

// urlPollInterval paces the location checks while waiting for the SPA
// router to land somewhere.
const urlPollInterval = 100 * time.Millisecond

// Navigator tracks which screen the session tab is on and performs the
// transitions between them. Not safe for concurrent use; callers hold
// the session slot.
type Navigator struct {
	drv    domotica.Driver
	creds  domotica.Credentials
	retry  domotica.RetryPolicy
	logger *zap.Logger

	state       domotica.NavState
	comandaMesa string
}

// New creates a navigator in the LoggedOut state.
func New(drv domotica.Driver, creds domotica.Credentials, retry domotica.RetryPolicy, logger *zap.Logger) *Navigator {
	return &Navigator{
		drv:    drv,
		creds:  creds,
		retry:  retry,
		logger: logger,
		state:  domotica.LoggedOut,
	}
}

// State returns the current navigation state.
func (n *Navigator) State() domotica.NavState {
	return n.state
}

// ComandaMesa returns the table the open comanda belongs to. Empty
// unless State is InComanda.
func (n *Navigator) ComandaMesa() string {
	return n.comandaMesa
}

// Require verifies the session is in one of the given states and
// returns ErrInvalidState otherwise. State errors are structural and
// must never be retried.
func (n *Navigator) Require(states ...domotica.NavState) error {
	for _, s := range states {
		if n.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: in %s", domotica.ErrInvalidState, n.state)
}

// Login authenticates against the console. A no-op when the session is
// already past the login screen. Exhausting the retry budget maps to
// ErrAuth since the console shows no distinct error element for bad
// credentials.
func (n *Navigator) Login(ctx context.Context) (err error) {
	defer func() { metrics.ObserveTransition("login", err) }()

	if n.state != domotica.LoggedOut {
		return nil
	}

	if err = n.drv.Navigate(ctx, n.creds.BaseURL); err != nil {
		return fmt.Errorf("%w: reach login page: %v", domotica.ErrConnection, err)
	}
	if err = n.drv.WaitVisible(ctx, selUserInput); err != nil {
		return fmt.Errorf("login form: %w", err)
	}
	if err = n.drv.SendKeys(ctx, selUserInput, n.creds.Usuario); err != nil {
		return fmt.Errorf("fill usuario: %w", err)
	}
	if err = n.drv.Clear(ctx, selPassInput); err != nil {
		return fmt.Errorf("clear password: %w", err)
	}
	if err = n.drv.SendKeys(ctx, selPassInput, n.creds.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}

	err = n.retry.Do(ctx, "submit login", func(ctx context.Context) error {
		if err := n.drv.Click(ctx, selLoginButton); err != nil {
			return err
		}
		return n.waitURLContains(ctx, panelURLFragment)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domotica.ErrAuth, err)
	}

	n.state = domotica.AuthenticatedIdle
	n.logger.Debug("logged in", zap.String("usuario", n.creds.Usuario))
	return nil
}

// ToPanel lands on the main panel screen. Idempotent when already there.
func (n *Navigator) ToPanel(ctx context.Context) (err error) {
	defer func() { metrics.ObserveTransition("to_panel", err) }()

	if n.state == domotica.InPanel {
		return nil
	}
	if err = n.Require(domotica.AuthenticatedIdle, domotica.InTableList); err != nil {
		return err
	}

	// From the table list the panel cards are no longer on screen;
	// reloading the base URL re-renders the panel home for an
	// authenticated session.
	if n.state == domotica.InTableList {
		if err = n.drv.Navigate(ctx, n.creds.BaseURL); err != nil {
			return fmt.Errorf("return to panel: %w", err)
		}
	}

	if err = n.drv.WaitVisible(ctx, selPanelLandmark); err != nil {
		return fmt.Errorf("panel landmark: %w", err)
	}
	n.state = domotica.InPanel
	return nil
}

// ToMesas opens the table list from the panel. The Mesas card is found
// by its heading text, falling back to its image when the heading does
// not render.
func (n *Navigator) ToMesas(ctx context.Context) (err error) {
	defer func() { metrics.ObserveTransition("to_mesas", err) }()

	if n.state == domotica.InTableList {
		return nil
	}
	if err = n.Require(domotica.InPanel); err != nil {
		return err
	}

	err = n.retry.Do(ctx, "open mesas", func(ctx context.Context) error {
		if clickErr := n.drv.Click(ctx, selMesasCard); clickErr != nil {
			n.logger.Debug("mesas heading not clickable, trying image", zap.Error(clickErr))
			if imgErr := n.drv.Click(ctx, selMesasCardImg); imgErr != nil {
				return clickErr
			}
		}
		return n.drv.WaitVisible(ctx, selMesasLandmark)
	})
	if err != nil {
		return fmt.Errorf("open table list: %w", err)
	}
	n.state = domotica.InTableList
	return nil
}

// ToComanda opens the order screen for the named table. Unknown table
// identifiers map to ErrNotFound without a state change.
func (n *Navigator) ToComanda(ctx context.Context, mesaID string) (err error) {
	defer func() { metrics.ObserveTransition("to_comanda", err) }()

	if n.state == domotica.InComanda && n.comandaMesa == mesaID {
		return nil
	}
	if err = n.Require(domotica.InTableList); err != nil {
		return err
	}

	card := fmt.Sprintf(mesaCardPattern, mesaID)
	if err = n.drv.Click(ctx, card); err != nil {
		return fmt.Errorf("%w: mesa %q: %v", domotica.ErrNotFound, mesaID, err)
	}
	if err = n.drv.WaitVisible(ctx, selCategoryCards); err != nil {
		return fmt.Errorf("comanda screen for %q: %w", mesaID, err)
	}
	n.state = domotica.InComanda
	n.comandaMesa = mesaID
	return nil
}

// ToComandaLibre opens the order screen of the first free table. Used
// by the menu extraction workflow, which needs any comanda screen but
// must not touch an occupied table.
func (n *Navigator) ToComandaLibre(ctx context.Context) (err error) {
	defer func() { metrics.ObserveTransition("to_comanda_libre", err) }()

	if n.state == domotica.InComanda {
		return nil
	}
	if err = n.Require(domotica.InTableList); err != nil {
		return err
	}

	if err = n.drv.Click(ctx, freeCardXPath); err != nil {
		return fmt.Errorf("%w: no free table: %v", domotica.ErrNotFound, err)
	}
	if err = n.drv.WaitVisible(ctx, selCategoryCards); err != nil {
		return fmt.Errorf("comanda screen: %w", err)
	}
	n.state = domotica.InComanda
	n.comandaMesa = ""
	return nil
}

// BackToMesas returns from a comanda screen to the table list via the
// red back arrow.
func (n *Navigator) BackToMesas(ctx context.Context) (err error) {
	defer func() { metrics.ObserveTransition("back_to_mesas", err) }()

	if n.state == domotica.InTableList {
		return nil
	}
	if err = n.Require(domotica.InComanda); err != nil {
		return err
	}

	err = n.retry.Do(ctx, "back to mesas", func(ctx context.Context) error {
		if err := n.drv.Click(ctx, selBackArrow); err != nil {
			return err
		}
		return n.drv.WaitVisible(ctx, selMesasLandmark)
	})
	if err != nil {
		return fmt.Errorf("return to table list: %w", err)
	}
	n.state = domotica.InTableList
	n.comandaMesa = ""
	return nil
}

// Logout ends the console session through the burger menu. Best effort:
// failures are logged, never returned, and the navigator always ends in
// LoggedOut so the next workflow re-authenticates from scratch.
func (n *Navigator) Logout(ctx context.Context) {
	defer func() {
		n.state = domotica.LoggedOut
		n.comandaMesa = ""
	}()

	if n.state == domotica.LoggedOut {
		return
	}
	if err := n.drv.Click(ctx, selBurgerMenu); err != nil {
		n.logger.Warn("logout: burger menu", zap.Error(err))
		return
	}
	if err := n.drv.Click(ctx, selLogoutItem); err != nil {
		n.logger.Warn("logout: menu item", zap.Error(err))
		return
	}
	if err := n.waitURLNotContains(ctx, panelURLFragment); err != nil {
		n.logger.Warn("logout: still on panel", zap.Error(err))
		return
	}
	metrics.ObserveTransition("logout", nil)
	n.logger.Debug("logged out")
}

// waitURLContains polls the tab location until it contains fragment or
// the step timeout elapses. The SPA router lands asynchronously after a
// click, so a single instantaneous check would misread a slow console
// as a failed transition.
func (n *Navigator) waitURLContains(ctx context.Context, fragment string) error {
	return n.waitURL(ctx,
		func(loc string) bool { return strings.Contains(loc, fragment) },
		func(loc string) error {
			return fmt.Errorf("%w: at %s, want %q", domotica.ErrNavigation, loc, fragment)
		})
}

func (n *Navigator) waitURLNotContains(ctx context.Context, fragment string) error {
	return n.waitURL(ctx,
		func(loc string) bool { return !strings.Contains(loc, fragment) },
		func(loc string) error {
			return fmt.Errorf("%w: still at %s", domotica.ErrNavigation, loc)
		})
}

func (n *Navigator) waitURL(ctx context.Context, ok func(string) bool, fail func(string) error) error {
	timeout := n.creds.StepTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		loc, err := n.drv.Location(ctx)
		if err != nil {
			return err
		}
		if ok(loc) {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fail(loc)
		}
		select {
		case <-time.After(urlPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
