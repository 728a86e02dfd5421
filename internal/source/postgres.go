package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recaops/ods-sync/internal/schema"
)

// Store is the pgx-backed implementation of RecordSource and RateSource.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the remote database and verifies the connection.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is not configured")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// FetchAll returns every service order, ordered stably for rebuilds.
func (s *Store) FetchAll(ctx context.Context) ([]schema.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT * FROM ods ORDER BY fecha_servicio, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ods: %w", err)
	}
	return scanRecords(rows)
}

// FetchPeriod returns the service orders of one billing period.
func (s *Store) FetchPeriod(ctx context.Context, mes, ano int) ([]schema.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT * FROM ods WHERE mes_servicio = $1 AND año_servicio = $2`, mes, ano)
	if err != nil {
		return nil, fmt.Errorf("failed to query ods period: %w", err)
	}
	return scanRecords(rows)
}

// Rates returns the unit rate for each requested service code that has one.
func (s *Store) Rates(ctx context.Context, codes []string) (map[string]float64, error) {
	rates := make(map[string]float64, len(codes))
	if len(codes) == 0 {
		return rates, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT codigo_servicio, valor_base FROM tarifas WHERE codigo_servicio = ANY($1)`, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to query tarifas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		var rate *float64
		if err := rows.Scan(&code, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan tarifa: %w", err)
		}
		if rate != nil {
			rates[code] = *rate
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tarifas: %w", err)
	}
	return rates, nil
}

// scanRecords converts a result set into canonical records keyed by column
// name; the remote schema uses the canonical field names directly.
func scanRecords(rows pgx.Rows) ([]schema.Record, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var records []schema.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		rec := make(schema.Record, len(fields))
		for i, field := range fields {
			rec[string(field.Name)] = values[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ods rows: %w", err)
	}
	return records, nil
}
