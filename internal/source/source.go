// Package source provides access to the remote source of truth for service
// orders: the Postgres "ods" table and the "tarifas" rate table.
package source

import (
	"context"

	"github.com/recaops/ods-sync/internal/schema"
)

// RecordSource yields authoritative service-order records. The rebuild engine
// consumes FetchAll; invoice generation consumes FetchPeriod.
type RecordSource interface {
	FetchAll(ctx context.Context) ([]schema.Record, error)
	FetchPeriod(ctx context.Context, mes, ano int) ([]schema.Record, error)
}

// RateSource yields unit rates by service code. Codes with no configured
// rate are simply absent from the returned map.
type RateSource interface {
	Rates(ctx context.Context, codes []string) (map[string]float64, error)
}
