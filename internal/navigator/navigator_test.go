package navigator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"domotica-bridge/internal/domotica"
)

// fakeDriver scripts DOM outcomes per selector and records every call.
// The locations queue is consumed first, one entry per Location call,
// so tests can script a redirect that lands after a few polls.
type fakeDriver struct {
	calls     []string
	failures  map[string]error
	location  string
	locations []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{failures: map[string]error{}}
}

func (f *fakeDriver) record(op, sel string) error {
	f.calls = append(f.calls, op+" "+sel)
	if err, ok := f.failures[sel]; ok {
		return err
	}
	return nil
}

func (f *fakeDriver) Navigate(_ context.Context, url string) error {
	return f.record("navigate", url)
}

func (f *fakeDriver) WaitVisible(_ context.Context, sel string) error {
	return f.record("wait", sel)
}

func (f *fakeDriver) Click(_ context.Context, sel string) error {
	return f.record("click", sel)
}

func (f *fakeDriver) SendKeys(_ context.Context, sel, _ string) error {
	return f.record("sendkeys", sel)
}

func (f *fakeDriver) Clear(_ context.Context, sel string) error {
	return f.record("clear", sel)
}

func (f *fakeDriver) Text(_ context.Context, sel string) (string, error) {
	return "", f.record("text", sel)
}

func (f *fakeDriver) OuterHTML(_ context.Context, sel string) (string, error) {
	return "<html></html>", f.record("html", sel)
}

func (f *fakeDriver) Location(context.Context) (string, error) {
	f.calls = append(f.calls, "location")
	if len(f.locations) > 0 {
		loc := f.locations[0]
		f.locations = f.locations[1:]
		return loc, nil
	}
	return f.location, nil
}

func (f *fakeDriver) clicked(sel string) bool {
	for _, c := range f.calls {
		if c == "click "+sel {
			return true
		}
	}
	return false
}

func testCreds() domotica.Credentials {
	return domotica.Credentials{
		Usuario:     "admin",
		Password:    "secreto",
		BaseURL:     "https://consola.example.test",
		StepTimeout: 200 * time.Millisecond,
	}
}

func fastRetry() domotica.RetryPolicy {
	return domotica.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func loggedInNavigator(drv *fakeDriver) *Navigator {
	drv.location = "https://consola.example.test/panel"
	n := New(drv, testCreds(), fastRetry(), zap.NewNop())
	if err := n.Login(context.Background()); err != nil {
		panic(err)
	}
	return n
}

func TestLoginMovesToAuthenticated(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	drv.location = "https://consola.example.test/panel"
	n := New(drv, testCreds(), fastRetry(), zap.NewNop())

	require.NoError(t, n.Login(context.Background()))
	require.Equal(t, domotica.AuthenticatedIdle, n.State())
	require.True(t, drv.clicked(selLoginButton))
}

func TestLoginIdempotent(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	n := loggedInNavigator(drv)
	before := len(drv.calls)

	require.NoError(t, n.Login(context.Background()))
	require.Equal(t, before, len(drv.calls), "second login must not touch the DOM")
}

func TestLoginFailureLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	drv.location = "https://consola.example.test/" // never reaches /panel
	n := New(drv, testCreds(), fastRetry(), zap.NewNop())

	err := n.Login(context.Background())
	require.ErrorIs(t, err, domotica.ErrAuth)
	require.Equal(t, domotica.LoggedOut, n.State())
}

func TestLoginRetriesSubmit(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	drv.location = "https://consola.example.test/panel"
	drv.failures[selLoginButton] = domotica.ErrStaleElement
	n := New(drv, testCreds(), fastRetry(), zap.NewNop())

	err := n.Login(context.Background())
	require.ErrorIs(t, err, domotica.ErrAuth)

	submits := 0
	for _, c := range drv.calls {
		if strings.HasPrefix(c, "click "+selLoginButton) {
			submits++
		}
	}
	require.Equal(t, 2, submits, "stale submit button should be retried to the bound")
}

func TestLoginWaitsForSlowRedirect(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	drv.locations = []string{"https://consola.example.test/"}
	drv.location = "https://consola.example.test/panel"
	n := New(drv, testCreds(), domotica.RetryPolicy{MaxAttempts: 1}, zap.NewNop())

	require.NoError(t, n.Login(context.Background()))
	require.Equal(t, domotica.AuthenticatedIdle, n.State())

	submits := 0
	polls := 0
	for _, c := range drv.calls {
		if c == "click "+selLoginButton {
			submits++
		}
		if c == "location" {
			polls++
		}
	}
	require.Equal(t, 1, submits, "a slow redirect is awaited, not re-clicked")
	require.GreaterOrEqual(t, polls, 2)
}

func TestToPanelRequiresAuthentication(t *testing.T) {
	t.Parallel()

	n := New(newFakeDriver(), testCreds(), fastRetry(), zap.NewNop())
	err := n.ToPanel(context.Background())
	require.ErrorIs(t, err, domotica.ErrInvalidState)
	require.Equal(t, domotica.LoggedOut, n.State())
}

func TestToPanelFromTableListReloads(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	n := loggedInNavigator(drv)
	require.NoError(t, n.ToPanel(context.Background()))
	require.NoError(t, n.ToMesas(context.Background()))
	before := len(drv.calls)

	require.NoError(t, n.ToPanel(context.Background()))
	require.Equal(t, domotica.InPanel, n.State())

	reloaded := false
	for _, c := range drv.calls[before:] {
		if c == "navigate "+testCreds().BaseURL {
			reloaded = true
		}
	}
	require.True(t, reloaded, "leaving the table list needs a real navigation")
}

func TestWorkflowPathToComanda(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	n := loggedInNavigator(drv)

	require.NoError(t, n.ToPanel(context.Background()))
	require.Equal(t, domotica.InPanel, n.State())

	require.NoError(t, n.ToMesas(context.Background()))
	require.Equal(t, domotica.InTableList, n.State())

	require.NoError(t, n.ToComanda(context.Background(), "MESA-01"))
	require.Equal(t, domotica.InComanda, n.State())
	require.Equal(t, "MESA-01", n.ComandaMesa())

	require.NoError(t, n.BackToMesas(context.Background()))
	require.Equal(t, domotica.InTableList, n.State())
	require.Empty(t, n.ComandaMesa())
}

func TestToMesasFallsBackToImageCard(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	drv.failures[selMesasCard] = domotica.ErrStaleElement
	n := loggedInNavigator(drv)
	require.NoError(t, n.ToPanel(context.Background()))

	require.NoError(t, n.ToMesas(context.Background()))
	require.Equal(t, domotica.InTableList, n.State())
	require.True(t, drv.clicked(selMesasCardImg))
}

func TestToComandaUnknownMesa(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	n := loggedInNavigator(drv)
	require.NoError(t, n.ToPanel(context.Background()))
	require.NoError(t, n.ToMesas(context.Background()))

	card := `//div[contains(@class, "v-card--link")][.//h2[normalize-space(text()) = "GHOST"]]`
	drv.failures[card] = domotica.ErrNotFound

	err := n.ToComanda(context.Background(), "GHOST")
	require.ErrorIs(t, err, domotica.ErrNotFound)
	require.Equal(t, domotica.InTableList, n.State(), "failed transition must not move the state")
}

func TestToComandaFromWrongState(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	n := loggedInNavigator(drv)

	err := n.ToComanda(context.Background(), "MESA-01")
	require.ErrorIs(t, err, domotica.ErrInvalidState)
	require.Equal(t, domotica.AuthenticatedIdle, n.State())
}

func TestToComandaLibreClicksFirstFreeCard(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	n := loggedInNavigator(drv)
	require.NoError(t, n.ToPanel(context.Background()))
	require.NoError(t, n.ToMesas(context.Background()))

	require.NoError(t, n.ToComandaLibre(context.Background()))
	require.Equal(t, domotica.InComanda, n.State())
	require.Empty(t, n.ComandaMesa())
	require.True(t, drv.clicked(freeCardXPath))
}

func TestLogoutAlwaysEndsLoggedOut(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	drv.failures[selBurgerMenu] = domotica.ErrStaleElement
	n := loggedInNavigator(drv)

	n.Logout(context.Background())
	require.Equal(t, domotica.LoggedOut, n.State())
}

func TestLogoutIdempotent(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	n := New(drv, testCreds(), fastRetry(), zap.NewNop())

	n.Logout(context.Background())
	require.Equal(t, domotica.LoggedOut, n.State())
	require.Empty(t, drv.calls)
}
