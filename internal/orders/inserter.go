// Package orders runs the write workflow: adding line items and an
// invoice to a mesa's comanda through the console UI.
package orders

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"domotica-bridge/internal/domotica"
	"domotica-bridge/internal/metrics"
	"domotica-bridge/internal/navigator"
)

// Invoice form selectors. The form opens from the comanda screen after
// every line item is placed.
const (
	selFacturaButton   = `//button[contains(., "EMITIR")]`
	selComprobanteItem = `//div[contains(@class, "v-list-item") and contains(., %q)]`
	selComprobanteSel  = `//div[contains(@class, "v-select")][.//label[contains(., "Comprobante")]]`
	selNumeroInput     = `//div[contains(@class, "v-text-field")][.//label[contains(., "Documento")]]//input`
	selNombreInput     = `//div[contains(@class, "v-text-field")][.//label[contains(., "Nombre")]]//input`
	selDireccionInput  = `//div[contains(@class, "v-text-field")][.//label[contains(., "Direccion")]]//input`
	selNotaInput       = `//div[contains(@class, "v-textarea")]//textarea`
	selGuardarButton   = `//button[contains(., "GUARDAR")]`

	categoryCardPattern = `//div[contains(@class, "hoverable") and contains(@class, "v-card--link")][.//h2[normalize-space(text()) = %q]]`
	productRowPattern   = `//tr[.//td[1][normalize-space(text()) = %q]]`
	selBackArrow        = `//i[contains(@class, "mdi-arrow-left") and contains(@class, "red--text")]`
	selCategoryCards    = `//div[contains(@class, "hoverable") and contains(@class, "v-card--link")]`
)

// Inserter places comandas into the console. One line item failing does
// not stop the rest; the outcome reports exactly what landed.
type Inserter struct {
	drv    domotica.Driver
	nav    *navigator.Navigator
	retry  domotica.RetryPolicy
	logger *zap.Logger
}

// New creates an inserter bound to one session tab.
func New(drv domotica.Driver, nav *navigator.Navigator, retry domotica.RetryPolicy, logger *zap.Logger) *Inserter {
	return &Inserter{drv: drv, nav: nav, retry: retry, logger: logger}
}

// Insert runs the full order workflow: validate, log in, open the
// mesa's comanda, place each plato, fill the invoice and log out. The
// request is validated in full before the first DOM write. A returned
// error means the workflow could not start or could not reach the
// comanda; per-item failures live in the outcome instead. Logout is
// attempted whenever login succeeded, regardless of what failed after.
func (ins *Inserter) Insert(ctx context.Context, req domotica.ComandaRequest) (domotica.ComandaOutcome, error) {
	var outcome domotica.ComandaOutcome

	if err := req.Validate(); err != nil {
		return outcome, err
	}

	if err := ins.nav.Login(ctx); err != nil {
		return outcome, fmt.Errorf("comanda for %q: %w", req.MesaID, err)
	}
	defer func() {
		ins.nav.Logout(ctx)
		outcome.LoggedOut = true
		ins.observe(outcome)
	}()

	if err := ins.toTableList(ctx); err != nil {
		return outcome, err
	}
	if err := ins.nav.ToComanda(ctx, req.MesaID); err != nil {
		return outcome, err
	}

	for _, plato := range req.Platos {
		err := ins.retry.Do(ctx, "insert plato", func(ctx context.Context) error {
			return ins.insertPlato(ctx, plato)
		})
		outcome.RecordPlato(err)
		if err != nil {
			ins.logger.Warn("plato failed",
				zap.String("mesa", req.MesaID),
				zap.String("plato", plato.Nombre),
				zap.Error(err),
			)
		}
	}

	outcome.RecordFactura(ins.fillFactura(ctx, req.Factura))
	return outcome, nil
}

// toTableList reaches the table list from wherever the previous
// workflow left the session.
func (ins *Inserter) toTableList(ctx context.Context) error {
	switch ins.nav.State() {
	case domotica.InTableList:
		return nil
	case domotica.InComanda:
		return ins.nav.BackToMesas(ctx)
	}
	if err := ins.nav.ToPanel(ctx); err != nil {
		return err
	}
	return ins.nav.ToMesas(ctx)
}

// insertPlato opens the plato's category, clicks its row once per unit
// and returns to the category view. The back step runs even on failure
// so the next plato starts from a known screen.
func (ins *Inserter) insertPlato(ctx context.Context, plato domotica.Plato) error {
	card := fmt.Sprintf(categoryCardPattern, plato.Categoria)
	if err := ins.drv.Click(ctx, card); err != nil {
		return fmt.Errorf("%w: categoria %q: %v", domotica.ErrNotFound, plato.Categoria, err)
	}
	defer func() {
		if err := ins.backToCategorias(ctx); err != nil {
			ins.logger.Warn("return to categories", zap.Error(err))
		}
	}()

	row := fmt.Sprintf(productRowPattern, plato.Nombre)
	if err := ins.drv.WaitVisible(ctx, row); err != nil {
		return fmt.Errorf("%w: producto %q: %v", domotica.ErrNotFound, plato.Nombre, err)
	}
	for i := 0; i < plato.Cantidad; i++ {
		if err := ins.drv.Click(ctx, row); err != nil {
			return fmt.Errorf("add %q unit %d: %w", plato.Nombre, i+1, err)
		}
	}
	return nil
}

// fillFactura completes the invoice form. The comprobante kind is
// derived from the document type, never taken from the caller.
func (ins *Inserter) fillFactura(ctx context.Context, f domotica.Factura) error {
	if err := ins.drv.Click(ctx, selFacturaButton); err != nil {
		return fmt.Errorf("open invoice form: %w", err)
	}
	if err := ins.drv.Click(ctx, selComprobanteSel); err != nil {
		return fmt.Errorf("open comprobante select: %w", err)
	}
	item := fmt.Sprintf(selComprobanteItem, f.Comprobante())
	if err := ins.drv.Click(ctx, item); err != nil {
		return fmt.Errorf("pick comprobante %s: %w", f.Comprobante(), err)
	}
	if err := ins.drv.SendKeys(ctx, selNumeroInput, f.NumeroDocumento); err != nil {
		return fmt.Errorf("fill documento: %w", err)
	}
	if err := ins.drv.SendKeys(ctx, selNombreInput, f.Nombre); err != nil {
		return fmt.Errorf("fill nombre: %w", err)
	}
	if f.Direccion != "" {
		if err := ins.drv.SendKeys(ctx, selDireccionInput, f.Direccion); err != nil {
			return fmt.Errorf("fill direccion: %w", err)
		}
	}
	if f.Nota != "" {
		if err := ins.drv.SendKeys(ctx, selNotaInput, f.Nota); err != nil {
			return fmt.Errorf("fill nota: %w", err)
		}
	}
	if err := ins.drv.Click(ctx, selGuardarButton); err != nil {
		return fmt.Errorf("save invoice: %w", err)
	}
	return nil
}

func (ins *Inserter) backToCategorias(ctx context.Context) error {
	if err := ins.drv.Click(ctx, selBackArrow); err != nil {
		return err
	}
	return ins.drv.WaitVisible(ctx, selCategoryCards)
}

func (ins *Inserter) observe(outcome domotica.ComandaOutcome) {
	if metrics.Comandas == nil {
		return
	}
	status := "failed"
	switch {
	case outcome.Complete() && outcome.FacturaFilled:
		status = "complete"
	case outcome.Succeeded > 0:
		status = "partial"
	}
	metrics.Comandas.WithLabelValues(status).Inc()
	if outcome.Succeeded > 0 {
		metrics.ComandaItems.WithLabelValues("ok").Add(float64(outcome.Succeeded))
	}
	if failed := outcome.Attempted - outcome.Succeeded; failed > 0 {
		metrics.ComandaItems.WithLabelValues("error").Add(float64(failed))
	}
}
