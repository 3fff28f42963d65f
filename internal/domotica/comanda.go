package domotica

import (
	"fmt"
	"strings"
)

// TipoDocumento is the invoice document type accepted by the console.
type TipoDocumento string

// Supported document types.
const (
	DocumentoRUC TipoDocumento = "RUC"
	DocumentoDNI TipoDocumento = "DNI"
)

// Document-number lengths mandated per type.
const (
	rucDigits = 11
	dniDigits = 8
)

// Factura is the invoice payload attached to a comanda.
type Factura struct {
	TipoDocumento   TipoDocumento `json:"tipo_documento"`
	NumeroDocumento string        `json:"numero_documento"`
	Nombre          string        `json:"nombre"`
	Direccion       string        `json:"direccion"`
	Nota            string        `json:"nota,omitempty"`
}

// Comprobante derives the invoice kind from the document type: RUC
// buyers get a FACTURA, DNI buyers a BOLETA.
func (f Factura) Comprobante() string {
	if f.TipoDocumento == DocumentoRUC {
		return "FACTURA"
	}
	return "BOLETA"
}

// Validate enforces the type-specific document-number length and digit
// content.
func (f Factura) Validate() error {
	var want int
	switch f.TipoDocumento {
	case DocumentoRUC:
		want = rucDigits
	case DocumentoDNI:
		want = dniDigits
	default:
		return fmt.Errorf("%w: tipo_documento %q no soportado", ErrValidation, f.TipoDocumento)
	}
	if len(f.NumeroDocumento) != want {
		return fmt.Errorf("%w: numero_documento must have %d digits for %s, got %d",
			ErrValidation, want, f.TipoDocumento, len(f.NumeroDocumento))
	}
	for _, r := range f.NumeroDocumento {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: numero_documento must be digits only", ErrValidation)
		}
	}
	if strings.TrimSpace(f.Nombre) == "" {
		return fmt.Errorf("%w: factura nombre is required", ErrValidation)
	}
	return nil
}

// Plato is one line item of a comanda.
type Plato struct {
	Categoria string  `json:"categoria"`
	Nombre    string  `json:"nombre"`
	Cantidad  int     `json:"cantidad"`
	Precio    float64 `json:"precio"`
}

// ComandaRequest asks for line items to be added to one mesa's order
// slip, finished with an invoice. Validation is total before the first
// DOM write; no partially-validated request begins execution.
type ComandaRequest struct {
	MesaID  string  `json:"mesa_id"`
	Platos  []Plato `json:"platos"`
	Factura Factura `json:"factura"`
}

// Validate checks the whole request. It never touches the DOM.
func (r ComandaRequest) Validate() error {
	if strings.TrimSpace(r.MesaID) == "" {
		return fmt.Errorf("%w: mesa_id is required", ErrValidation)
	}
	if len(r.Platos) == 0 {
		return fmt.Errorf("%w: at least one plato is required", ErrValidation)
	}
	for i, p := range r.Platos {
		if strings.TrimSpace(p.Nombre) == "" {
			return fmt.Errorf("%w: plato %d has no nombre", ErrValidation, i)
		}
		if p.Cantidad <= 0 {
			return fmt.Errorf("%w: plato %q cantidad must be > 0", ErrValidation, p.Nombre)
		}
		if p.Precio < 0 {
			return fmt.Errorf("%w: plato %q precio must be >= 0", ErrValidation, p.Nombre)
		}
	}
	return r.Factura.Validate()
}

// ComandaOutcome reports how an insertion went. It is built
// incrementally as each plato is processed and never edited after
// being returned.
type ComandaOutcome struct {
	Attempted     int    `json:"attempted"`
	Succeeded     int    `json:"succeeded"`
	FirstError    string `json:"first_error,omitempty"`
	FacturaFilled bool   `json:"factura_filled"`
	LoggedOut     bool   `json:"logged_out"`
}

// Complete reports whether every attempted plato landed.
func (o ComandaOutcome) Complete() bool {
	return o.Attempted > 0 && o.Succeeded == o.Attempted
}

func (o *ComandaOutcome) recordFailure(err error) {
	if o.FirstError == "" && err != nil {
		o.FirstError = err.Error()
	}
}

// RecordPlato folds one line-item result into the outcome.
func (o *ComandaOutcome) RecordPlato(err error) {
	o.Attempted++
	if err == nil {
		o.Succeeded++
		return
	}
	o.recordFailure(err)
}

// RecordFactura folds the invoice-fill result into the outcome.
func (o *ComandaOutcome) RecordFactura(err error) {
	if err == nil {
		o.FacturaFilled = true
		return
	}
	o.recordFailure(err)
}
