package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"domotica-bridge/internal/domotica"
)

const mesasFixture = `
<body>
  <div class="v-card v-card--link" style="background-color: rgb(70, 255, 0);"><h2>MESA-01</h2></div>
  <div class="v-card v-card--link" style="background-color: rgb(255, 45, 0);"><h2>MESA-02</h2></div>
</body>`

// fakeDriver scripts DOM outcomes per selector. Clicks listed in
// redirects move the fake location, mimicking the SPA router.
type fakeDriver struct {
	calls     []string
	failures  map[string]error
	html      map[string]string
	location  string
	redirects map[string]string
}

const (
	loginURL = "https://consola.example.test/"
	panelURL = "https://consola.example.test/panel"

	submitSel = `//button[contains(., "INICIAR SESION")]`
	logoutSel = `//div[contains(@class, "v-list-item") and contains(., "Cerrar Sesion")]`
)

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		failures: map[string]error{},
		html:     map[string]string{},
		location: loginURL,
		redirects: map[string]string{
			submitSel: panelURL,
			logoutSel: loginURL,
		},
	}
}

func (f *fakeDriver) step(op, sel string) error {
	f.calls = append(f.calls, op+" "+sel)
	if err, ok := f.failures[sel]; ok {
		return err
	}
	return nil
}

func (f *fakeDriver) Navigate(_ context.Context, url string) error { return f.step("navigate", url) }
func (f *fakeDriver) WaitVisible(_ context.Context, sel string) error {
	return f.step("wait", sel)
}
func (f *fakeDriver) Click(_ context.Context, sel string) error {
	if err := f.step("click", sel); err != nil {
		return err
	}
	if loc, ok := f.redirects[sel]; ok {
		f.location = loc
	}
	return nil
}
func (f *fakeDriver) SendKeys(_ context.Context, sel, _ string) error {
	return f.step("sendkeys", sel)
}
func (f *fakeDriver) Clear(_ context.Context, sel string) error { return f.step("clear", sel) }
func (f *fakeDriver) Text(_ context.Context, sel string) (string, error) {
	return "", f.step("text", sel)
}
func (f *fakeDriver) OuterHTML(_ context.Context, sel string) (string, error) {
	if err := f.step("html", sel); err != nil {
		return "", err
	}
	return f.html[sel], nil
}
func (f *fakeDriver) Location(context.Context) (string, error) {
	return f.location, nil
}

func (f *fakeDriver) countOp(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// fakeSession implements SessionHandle without launching a browser.
type fakeSession struct {
	drv     *fakeDriver
	slot    chan struct{}
	open    bool
	openErr error
	closed  bool
}

func newFakeSession(drv *fakeDriver) *fakeSession {
	return &fakeSession{drv: drv, slot: make(chan struct{}, 1)}
}

func (f *fakeSession) Open(context.Context, domotica.Credentials) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	return nil
}

func (f *fakeSession) Acquire(ctx context.Context) (func(), error) {
	select {
	case f.slot <- struct{}{}:
		return func() { <-f.slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSession) TryAcquire() (func(), error) {
	select {
	case f.slot <- struct{}{}:
		return func() { <-f.slot }, nil
	default:
		return nil, domotica.ErrSessionBusy
	}
}

func (f *fakeSession) Driver() domotica.Driver { return f.drv }
func (f *fakeSession) IsOpen() bool            { return f.open }
func (f *fakeSession) Close()                  { f.closed = true }

func newService(drv *fakeDriver) (*Service, *fakeSession) {
	sess := newFakeSession(drv)
	creds := domotica.Credentials{
		Usuario:     "u",
		Password:    "p",
		BaseURL:     "https://consola.example.test",
		StepTimeout: 100 * time.Millisecond,
	}
	retry := domotica.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return New(sess, creds, retry, zap.NewNop()), sess
}

func TestMesasScrapesAndStaysLoggedIn(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	drv.html["body"] = mesasFixture
	svc, _ := newService(drv)

	mesas, err := svc.Mesas(context.Background())
	require.NoError(t, err)
	require.Len(t, mesas, 2)
	require.Equal(t, "MESA-01", mesas[0].Identificador)

	logins := drv.countOp(`click //button[contains(., "INICIAR SESION")]`)
	require.Equal(t, 1, logins)

	// Second call reuses the authenticated table list screen.
	_, err = svc.Mesas(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, drv.countOp(`click //button[contains(., "INICIAR SESION")]`),
		"no second login while the session is warm")
}

func TestSnapshotMesasAliasesMesas(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	drv.html["body"] = mesasFixture
	svc, _ := newService(drv)

	mesas, err := svc.SnapshotMesas(context.Background())
	require.NoError(t, err)
	require.Len(t, mesas, 2)
}

func TestProductosLogsOutAfterwards(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	drv.html["body"] = mesasFixture
	svc, _ := newService(drv)

	_, err := svc.Productos(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 1, drv.countOp(`click //i[contains(@class, "mdi-menu")]`),
		"menu extraction must end with a logout")

	// Next workflow has to authenticate again.
	_, err = svc.Mesas(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, drv.countOp(`click //button[contains(., "INICIAR SESION")]`))
}

func TestInsertComandaValidatesBeforeLock(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	svc, sess := newService(drv)

	// Hold the slot: a malformed request must still fail immediately.
	release, err := sess.TryAcquire()
	require.NoError(t, err)
	defer release()

	_, err = svc.InsertComanda(context.Background(), domotica.ComandaRequest{})
	require.ErrorIs(t, err, domotica.ErrValidation)
	require.Empty(t, drv.calls)
}

func TestBusyReflectsSlot(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	svc, sess := newService(drv)

	require.False(t, svc.Busy())
	release, err := sess.TryAcquire()
	require.NoError(t, err)
	require.True(t, svc.Busy())
	release()
	require.False(t, svc.Busy())
}

func TestMesasFailureResetsSession(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	drv.html["body"] = mesasFixture
	drv.failures[`//div[contains(@class, "v-card")]//h2`] = domotica.ErrNavigation
	svc, _ := newService(drv)

	_, err := svc.Mesas(context.Background())
	require.Error(t, err)

	// The reset logout forces a clean login on the next call.
	drv.failures = map[string]error{}
	_, err = svc.Mesas(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, drv.countOp(`click //button[contains(., "INICIAR SESION")]`))
}

func TestCloseClosesSession(t *testing.T) {
	t.Parallel()

	drv := newFakeDriver()
	svc, sess := newService(drv)
	svc.Close()
	require.True(t, sess.closed)
}
