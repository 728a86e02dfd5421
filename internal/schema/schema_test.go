package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_LowercasesAndCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "nuevo codigo", Normalize("  Nuevo   CODIGO  "))
	assert.Equal(t, "total horas", Normalize("Total\tHoras"))
}

func TestNormalize_StripsAccents(t *testing.T) {
	assert.Equal(t, "ano", Normalize("Año"))
	assert.Equal(t, "codigo servicio", Normalize("Código  Servicio"))
	assert.Equal(t, "genero", Normalize("Género"))
}

func TestFieldFor_KnownHeaders(t *testing.T) {
	cases := map[string]string{
		"nuevo codigo": "codigo_servicio",
		"ano":          "año_servicio",
		"nit":          "nit_empresa",
		"clausulada":   "orden_clausulada",
		"profesional":  "nombre_profesional",
	}
	for header, want := range cases {
		field, ok := FieldFor(header)
		require.True(t, ok, "header %q should resolve", header)
		assert.Equal(t, want, field)
	}
}

func TestFieldFor_UnknownHeaderIsNotManaged(t *testing.T) {
	_, ok := FieldFor(Normalize("Columna Manual"))
	assert.False(t, ok)
}

func TestFieldFor_RoundTripsWholeCatalog(t *testing.T) {
	seen := make(map[string]bool)
	for header := range headerFields {
		field, ok := FieldFor(header)
		require.True(t, ok)
		_, inCatalog := Fields[field]
		assert.True(t, inCatalog, "field %q missing from catalog", field)
		assert.False(t, seen[field], "field %q mapped twice", field)
		seen[field] = true
	}
}

func TestCoerce_NumericStringDrift(t *testing.T) {
	// A year stored as a number must compare equal to the same year read
	// back from a cell as text.
	assert.Equal(t, Coerce(2026), Coerce("2026"))
	assert.Equal(t, Coerce(float64(2026)), Coerce(" 2026 "))
	assert.Equal(t, "2026.5", Coerce(2026.5))
}

func TestCoerce_Dates(t *testing.T) {
	day := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-15", Coerce(day))
}

func TestCoerce_NilAndBlank(t *testing.T) {
	assert.Equal(t, "", Coerce(nil))
	assert.Equal(t, "", Coerce("   "))
}

func TestFloat_ToleratesCommaDecimals(t *testing.T) {
	assert.Equal(t, 2.5, Float("2,5"))
	assert.Equal(t, 2.5, Float("2.5"))
	assert.Equal(t, 0.0, Float("n/a"))
	assert.Equal(t, 4.0, Float(4))
	assert.Equal(t, 0.0, Float(nil))
}

func TestRecord_YearAcceptsBothSpellings(t *testing.T) {
	assert.Equal(t, 2026, Record{"año_servicio": 2026}.Year())
	assert.Equal(t, 2026, Record{"ano_servicio": "2026"}.Year())
	assert.Equal(t, 0, Record{}.Year())

	// The accented key wins when both are present.
	rec := Record{"año_servicio": 2026, "ano_servicio": 2025}
	assert.Equal(t, 2026, rec.Year())
}

func TestRecord_IsClausulada(t *testing.T) {
	assert.True(t, Record{"orden_clausulada": "Sí"}.IsClausulada())
	assert.True(t, Record{"orden_clausulada": "si"}.IsClausulada())
	assert.True(t, Record{"orden_clausulada": true}.IsClausulada())
	assert.False(t, Record{"orden_clausulada": "No"}.IsClausulada())
	assert.False(t, Record{"orden_clausulada": false}.IsClausulada())
	assert.False(t, Record{}.IsClausulada())
}
