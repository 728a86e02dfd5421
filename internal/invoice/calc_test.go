package invoice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recaops/ods-sync/internal/schema"
)

// fakeRecords serves a fixed period result.
type fakeRecords struct {
	period []schema.Record
	err    error
}

func (f *fakeRecords) FetchAll(ctx context.Context) ([]schema.Record, error) {
	return f.period, f.err
}

func (f *fakeRecords) FetchPeriod(ctx context.Context, mes, ano int) ([]schema.Record, error) {
	return f.period, f.err
}

// fakeRates serves a fixed code -> rate table and remembers what was asked.
type fakeRates struct {
	rates map[string]float64
	asked []string
	err   error
}

func (f *fakeRates) Rates(ctx context.Context, codes []string) (map[string]float64, error) {
	f.asked = codes
	return f.rates, f.err
}

func order(codigo, referencia, descripcion string, horas float64, clausulada bool) schema.Record {
	rec := schema.Record{
		"codigo_servicio":      codigo,
		"referencia_servicio":  referencia,
		"descripcion_servicio": descripcion,
		"orden_clausulada":     clausulada,
	}
	if horas > 0 {
		rec["horas_interprete"] = horas
	}
	return rec
}

func TestNormalizeTipo(t *testing.T) {
	for _, raw := range []string{"clausulada", "Clausulada", " CLAUSULADA "} {
		clean, err := NormalizeTipo(raw)
		require.NoError(t, err)
		assert.Equal(t, TipoClausulada, clean)
	}
	for _, raw := range []string{"no_clausulada", "no clausulada", "No-Clausulada"} {
		clean, err := NormalizeTipo(raw)
		require.NoError(t, err)
		assert.Equal(t, TipoNoClausulada, clean)
	}
	_, err := NormalizeTipo("parcial")
	require.Error(t, err)
}

func TestCalcItems_SumsHoursWithinGroup(t *testing.T) {
	records := &fakeRecords{period: []schema.Record{
		order("INT-1", "R1", "Interpretación", 1.5, true),
		order("INT-1", "R1", "Interpretación", 2.5, true),
	}}
	rates := &fakeRates{rates: map[string]float64{"INT-1": 50000}}

	items, err := CalcItems(t.Context(), records, rates, 3, 2026, "clausulada")
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, 4.0, items[0].Cantidad)
	assert.Equal(t, 50000.0, items[0].ValorBase)
	assert.Equal(t, 200000.0, items[0].Total)
	assert.Equal(t, []string{"INT-1"}, rates.asked)
}

func TestCalcItems_CountsMembersWithoutHours(t *testing.T) {
	records := &fakeRecords{period: []schema.Record{
		order("ASE-1", "R2", "Asesoría", 0, true),
		order("ASE-1", "R2", "Asesoría", 0, true),
	}}
	rates := &fakeRates{rates: map[string]float64{"ASE-1": 10000}}

	items, err := CalcItems(t.Context(), records, rates, 3, 2026, "clausulada")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2.0, items[0].Cantidad)
	assert.Equal(t, 20000.0, items[0].Total)
}

func TestCalcItems_HoursWinOverCountWithinGroup(t *testing.T) {
	// One member reports hours, the other does not: the group bills the hour
	// sum and the hourless member adds nothing.
	records := &fakeRecords{period: []schema.Record{
		order("INT-1", "R1", "Interpretación", 2, true),
		order("INT-1", "R1", "Interpretación", 0, true),
	}}
	rates := &fakeRates{rates: map[string]float64{"INT-1": 50000}}

	items, err := CalcItems(t.Context(), records, rates, 3, 2026, "clausulada")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2.0, items[0].Cantidad)
}

func TestCalcItems_FiltersByType(t *testing.T) {
	records := &fakeRecords{period: []schema.Record{
		order("INT-1", "R1", "Interpretación", 2, true),
		order("ASE-1", "R2", "Asesoría", 0, false),
	}}
	rates := &fakeRates{rates: map[string]float64{"INT-1": 50000, "ASE-1": 10000}}

	items, err := CalcItems(t.Context(), records, rates, 3, 2026, "clausulada")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "INT-1", items[0].CodigoServicio)

	items, err = CalcItems(t.Context(), records, rates, 3, 2026, "no_clausulada")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ASE-1", items[0].CodigoServicio)
}

func TestCalcItems_SortsByCodeThenReference(t *testing.T) {
	records := &fakeRecords{period: []schema.Record{
		order("B-1", "R2", "Beta dos", 1, true),
		order("B-1", "R1", "Beta uno", 1, true),
		order("A-1", "R9", "Alfa", 1, true),
	}}
	rates := &fakeRates{rates: map[string]float64{"A-1": 1, "B-1": 2}}

	items, err := CalcItems(t.Context(), records, rates, 3, 2026, "clausulada")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "A-1", items[0].CodigoServicio)
	assert.Equal(t, "B-1", items[1].CodigoServicio)
	assert.Equal(t, "R1", items[1].ReferenciaServicio)
	assert.Equal(t, "R2", items[2].ReferenciaServicio)
}

func TestCalcItems_MissingRateBillsZero(t *testing.T) {
	records := &fakeRecords{period: []schema.Record{
		order("SIN-TARIFA", "R1", "Sin tarifa", 3, true),
	}}
	rates := &fakeRates{rates: map[string]float64{}}

	items, err := CalcItems(t.Context(), records, rates, 3, 2026, "clausulada")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 0.0, items[0].ValorBase)
	assert.Equal(t, 0.0, items[0].Total)
	assert.Equal(t, 3.0, items[0].Cantidad)
}

func TestCalcItems_EmptyPeriod(t *testing.T) {
	records := &fakeRecords{}
	rates := &fakeRates{}
	_, err := CalcItems(t.Context(), records, rates, 3, 2026, "clausulada")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCalcItems_NoOrdersOfRequestedType(t *testing.T) {
	records := &fakeRecords{period: []schema.Record{
		order("INT-1", "R1", "Interpretación", 2, false),
	}}
	rates := &fakeRates{}
	_, err := CalcItems(t.Context(), records, rates, 3, 2026, "clausulada")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCalcItems_SourceFailurePropagates(t *testing.T) {
	records := &fakeRecords{err: errors.New("conexión perdida")}
	_, err := CalcItems(t.Context(), records, &fakeRates{}, 3, 2026, "clausulada")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestCalcItems_InvalidTipo(t *testing.T) {
	_, err := CalcItems(t.Context(), &fakeRecords{}, &fakeRates{}, 3, 2026, "parcial")
	require.Error(t, err)
}
