package domotica

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validRequest() ComandaRequest {
	return ComandaRequest{
		MesaID: "MESA-01",
		Platos: []Plato{
			{Categoria: "Platos Fuertes", Nombre: "Lomo Saltado", Cantidad: 2, Precio: 25.50},
		},
		Factura: Factura{
			TipoDocumento:   DocumentoRUC,
			NumeroDocumento: "20123456789",
			Nombre:          "Inversiones Andinas SAC",
			Direccion:       "Av. Principal 123",
		},
	}
}

// TestComandaRequestValidates covers the happy path for both document
// types.
func TestComandaRequestValidates(t *testing.T) {
	t.Parallel()

	req := validRequest()
	require.NoError(t, req.Validate())

	req.Factura.TipoDocumento = DocumentoDNI
	req.Factura.NumeroDocumento = "12345678"
	require.NoError(t, req.Validate())
}

// TestFacturaDocumentLength asserts the type-specific length rule: an
// 11-digit RUC passes, a short number fails before any navigation.
func TestFacturaDocumentLength(t *testing.T) {
	t.Parallel()

	f := Factura{TipoDocumento: DocumentoRUC, NumeroDocumento: "20123456789", Nombre: "Cliente"}
	require.NoError(t, f.Validate())

	f.NumeroDocumento = "123"
	err := f.Validate()
	require.ErrorIs(t, err, ErrValidation)

	f = Factura{TipoDocumento: DocumentoDNI, NumeroDocumento: "20123456789", Nombre: "Cliente"}
	require.ErrorIs(t, f.Validate(), ErrValidation)

	f.NumeroDocumento = "1234567a"
	require.ErrorIs(t, f.Validate(), ErrValidation)
}

// TestComandaRequestRejectsBadItems checks the line-item constraints.
func TestComandaRequestRejectsBadItems(t *testing.T) {
	t.Parallel()

	req := validRequest()
	req.Platos = nil
	require.ErrorIs(t, req.Validate(), ErrValidation)

	req = validRequest()
	req.Platos[0].Cantidad = 0
	require.ErrorIs(t, req.Validate(), ErrValidation)

	req = validRequest()
	req.Platos[0].Precio = -1
	require.ErrorIs(t, req.Validate(), ErrValidation)

	req = validRequest()
	req.MesaID = "  "
	require.ErrorIs(t, req.Validate(), ErrValidation)
}

// TestComprobanteDerivation maps RUC to FACTURA and DNI to BOLETA.
func TestComprobanteDerivation(t *testing.T) {
	t.Parallel()

	require.Equal(t, "FACTURA", Factura{TipoDocumento: DocumentoRUC}.Comprobante())
	require.Equal(t, "BOLETA", Factura{TipoDocumento: DocumentoDNI}.Comprobante())
}

// TestOutcomeAccumulation exercises the incremental outcome builder.
func TestOutcomeAccumulation(t *testing.T) {
	t.Parallel()

	var out ComandaOutcome
	out.RecordPlato(nil)
	out.RecordPlato(ErrStaleElement)
	out.RecordPlato(ErrNotFound)

	require.Equal(t, 3, out.Attempted)
	require.Equal(t, 1, out.Succeeded)
	require.Contains(t, out.FirstError, "stale element")
	require.False(t, out.Complete())

	out.RecordFactura(nil)
	require.True(t, out.FacturaFilled)
}
