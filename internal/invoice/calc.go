// =============================================================================
// ODS Sync - Invoice Calculation
// =============================================================================
//
// Turns the service orders of one billing period into invoice line items:
// filter by order type, group by (service code, reference, description),
// resolve the quantity mode per group, and join unit rates.
//
// Quantity modes are mutually exclusive per group: when any member reports a
// positive hour count the group quantity is the sum of hours; otherwise it is
// the member count.
//
// =============================================================================

package invoice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/recaops/ods-sync/internal/schema"
	"github.com/recaops/ods-sync/internal/source"
)

// ErrNoData reports that the requested period, or the requested type within
// it, has no service orders to invoice.
var ErrNoData = errors.New("no services found for the requested period")

// Item is one invoice line: an aggregation key with its rate and total.
type Item struct {
	CodigoServicio      string  `json:"codigo_servicio"`
	ReferenciaServicio  string  `json:"referencia_servicio"`
	DescripcionServicio string  `json:"descripcion_servicio"`
	ValorBase           float64 `json:"valor_base"`
	Cantidad            float64 `json:"cantidad"`
	Total               float64 `json:"total"`
}

// TipoClausulada and TipoNoClausulada are the two mutually exclusive invoice
// categories.
const (
	TipoClausulada   = "clausulada"
	TipoNoClausulada = "no_clausulada"
)

// NormalizeTipo folds the accepted spellings ("no clausulada",
// "no-clausulada") onto the canonical type keys.
func NormalizeTipo(tipo string) (string, error) {
	clean := strings.ReplaceAll(strings.ReplaceAll(
		strings.ToLower(strings.TrimSpace(tipo)), "-", "_"), " ", "_")
	switch clean {
	case TipoClausulada, TipoNoClausulada:
		return clean, nil
	default:
		return "", fmt.Errorf("invalid invoice type: %q", tipo)
	}
}

type groupKey struct {
	codigo      string
	referencia  string
	descripcion string
}

type groupAgg struct {
	count float64
	hours float64
}

// CalcItems computes the invoice line items for a period and type.
func CalcItems(ctx context.Context, records source.RecordSource, rates source.RateSource, mes, ano int, tipo string) ([]Item, error) {
	clean, err := NormalizeTipo(tipo)
	if err != nil {
		return nil, err
	}
	wantClausulada := clean == TipoClausulada

	period, err := records.FetchPeriod(ctx, mes, ano)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch period %d/%d: %w", mes, ano, err)
	}
	if len(period) == 0 {
		return nil, fmt.Errorf("period %d/%d: %w", mes, ano, ErrNoData)
	}

	var filtered []schema.Record
	for _, rec := range period {
		if rec.IsClausulada() == wantClausulada {
			filtered = append(filtered, rec)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("period %d/%d type %s: %w", mes, ano, clean, ErrNoData)
	}

	groups := make(map[groupKey]*groupAgg)
	codeSet := make(map[string]struct{})
	for _, rec := range filtered {
		key := groupKey{
			codigo:      schema.Coerce(rec[schema.FieldCode]),
			referencia:  schema.Coerce(rec[schema.FieldReference]),
			descripcion: schema.Coerce(rec[schema.FieldDescription]),
		}
		if key.codigo != "" {
			codeSet[key.codigo] = struct{}{}
		}
		agg, ok := groups[key]
		if !ok {
			agg = &groupAgg{}
			groups[key] = agg
		}
		if hours := schema.Float(rec[schema.FieldHours]); hours > 0 {
			agg.hours += hours
		} else {
			agg.count++
		}
	}
	if len(codeSet) == 0 {
		return nil, fmt.Errorf("period %d/%d has no service codes: %w", mes, ano, ErrNoData)
	}

	codes := make([]string, 0, len(codeSet))
	for code := range codeSet {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rateByCode, err := rates.Rates(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}

	items := make([]Item, 0, len(groups))
	for key, agg := range groups {
		cantidad := agg.count
		if agg.hours > 0 {
			cantidad = agg.hours
		}
		// A missing rate yields a zero-total line for human review rather
		// than failing the whole generation.
		valorBase := rateByCode[key.codigo]
		items = append(items, Item{
			CodigoServicio:      key.codigo,
			ReferenciaServicio:  key.referencia,
			DescripcionServicio: key.descripcion,
			ValorBase:           valorBase,
			Cantidad:            cantidad,
			Total:               valorBase * cantidad,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CodigoServicio != items[j].CodigoServicio {
			return items[i].CodigoServicio < items[j].CodigoServicio
		}
		return items[i].ReferenciaServicio < items[j].ReferenciaServicio
	})
	return items, nil
}
