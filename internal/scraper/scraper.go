// Package scraper extracts tables and menu data from the console DOM.
// Workflows here are read-only: they assume the navigator already put
// the session on the right screen and never change the console's data.
package scraper

import (
	"go.uber.org/zap"

	"domotica-bridge/internal/domotica"
	"domotica-bridge/internal/navigator"
)

// Modal and comanda selectors used by the extraction workflows.
const (
	selBody = "body"

	selOpcionesButton = `//button[contains(., "OPCIONES")]`
	selGestionarItem  = `//div[contains(@class, "v-list-item") and contains(., "Gestionar Mesas")]`
	selMesasTable     = `//div[contains(@class, "v-data-table__wrapper")]/table`
	selModalClose     = `//div[contains(@class, "v-system-bar")]//i[contains(@class, "mdi-close")]`

	selCategoryCards = `//div[contains(@class, "hoverable") and contains(@class, "v-card--link")]`
	selProductTable  = `//div[contains(@class, "v-data-table__wrapper")]/table`
	selBackArrow     = `//i[contains(@class, "mdi-arrow-left") and contains(@class, "red--text")]`
)

// Scraper reads the current screen into domain values. Callers hold the
// session slot for the duration of a call.
type Scraper struct {
	drv    domotica.Driver
	nav    *navigator.Navigator
	retry  domotica.RetryPolicy
	logger *zap.Logger
}

// New creates a scraper bound to one session tab.
func New(drv domotica.Driver, nav *navigator.Navigator, retry domotica.RetryPolicy, logger *zap.Logger) *Scraper {
	return &Scraper{drv: drv, nav: nav, retry: retry, logger: logger}
}
