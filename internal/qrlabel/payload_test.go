package qrlabel

import (
	"testing"

	"inventario-go/internal/apperr"
	"inventario-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTrip(t *testing.T) {
	row := model.CarDataRow{
		Serie:     "1HGCM82633A001234",
		Marca:     "Honda",
		Color:     "Blanco",
		Ubicacion: "Lote A-1",
	}

	encoded, err := Encode(row, "Bodega Coyote").Marshal()
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, row.Serie, decoded.Serie)
	assert.Equal(t, row.Marca, decoded.Marca)
	assert.Equal(t, row.Color, decoded.Color)
	assert.Equal(t, row.Ubicacion, decoded.Ubicacion)
	assert.Equal(t, "Bodega Coyote", decoded.Agencia)
	assert.False(t, decoded.Generado.IsZero())
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, err := Decode("this is not json")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestDecodeRejectsForeignType(t *testing.T) {
	_, err := Decode(`{"tipo":"otra-cosa","serie":"1HGCM82633A001234","marca":"Honda","color":"Blanco","ubicacion":"Lote A-1"}`)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "otra-cosa")
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	_, err := Decode(`{"tipo":"inventario-auto","serie":"1HGCM82633A001234","marca":"","color":"Blanco","ubicacion":"Lote A-1"}`)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestRenderImageProducesPNG(t *testing.T) {
	payload, err := Encode(model.CarDataRow{
		Serie: "1HGCM82633A001234", Marca: "Honda", Color: "Blanco", Ubicacion: "Lote A-1",
	}, "Suzuki").Marshal()
	require.NoError(t, err)

	img, err := RenderImage(payload, "1HGCM82633A001234", "Honda", "Blanco", "Suzuki")
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), img[:4])
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "1HGCM82633A001234_Honda", SanitizeFilename("1HGCM82633A001234 Honda"))
	assert.Equal(t, "Lote_A-1", SanitizeFilename("Lote A-1"))
	assert.Equal(t, "etiqueta", SanitizeFilename("???"))
}
