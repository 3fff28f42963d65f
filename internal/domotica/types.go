package domotica

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Credentials configure one browser session against the console.
// Immutable once handed to Session.Open.
type Credentials struct {
	Usuario     string
	Password    string
	BaseURL     string
	StepTimeout time.Duration
}

// Validate enforces the fields required before a session may open.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Usuario) == "" {
		return fmt.Errorf("%w: usuario is required", ErrValidation)
	}
	if c.Password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	if !strings.HasPrefix(c.BaseURL, "http") {
		return fmt.Errorf("%w: base url %q is not absolute", ErrValidation, c.BaseURL)
	}
	return nil
}

// NavState is the discrete DOM context the session currently occupies.
// Transitions through the Navigator are the only legal way to move
// between states.
type NavState int

// Navigation states, in workflow order.
const (
	LoggedOut NavState = iota
	AuthenticatedIdle
	InPanel
	InTableList
	InComanda
)

// String returns the state name used in logs and errors.
func (s NavState) String() string {
	switch s {
	case LoggedOut:
		return "LoggedOut"
	case AuthenticatedIdle:
		return "AuthenticatedIdle"
	case InPanel:
		return "InPanel"
	case InTableList:
		return "InTableList"
	case InComanda:
		return "InComanda"
	default:
		return fmt.Sprintf("NavState(%d)", int(s))
	}
}

// Mesa is one restaurant table as observed in a single scrape. It is an
// immutable snapshot value with no back-reference to the DOM.
type Mesa struct {
	Identificador string `json:"identificador"`
	Zona          string `json:"zona"`
	Ocupado       bool   `json:"ocupado"`
	Nota          string `json:"nota,omitempty"`
}

// Producto is one menu item as observed in a single scrape.
type Producto struct {
	Categoria string  `json:"categoria"`
	Nombre    string  `json:"nombre"`
	Stock     int     `json:"stock"`
	Precio    float64 `json:"precio"`
}

// Snapshot is the full set of mesas observed in one scrape cycle, keyed
// by identifier and tagged with a monotonic sequence number. It is
// replaced wholesale on each successful cycle, never mutated in place.
type Snapshot struct {
	Seq     uint64
	TakenAt time.Time
	Mesas   map[string]Mesa
}

// Clock abstracts time.Now so loops and stores stay deterministic under
// test.
type Clock interface {
	Now() time.Time
}

// Driver is the narrow DOM surface the navigation, extraction and
// insertion workflows run against. The chromedp implementation lives in
// internal/browser; tests substitute fakes. Selectors starting with "/"
// or "(" are treated as XPath, everything else as CSS.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, sel string) error
	Click(ctx context.Context, sel string) error
	SendKeys(ctx context.Context, sel, value string) error
	Clear(ctx context.Context, sel string) error
	Text(ctx context.Context, sel string) (string, error)
	OuterHTML(ctx context.Context, sel string) (string, error)
	Location(ctx context.Context) (string, error)
}
