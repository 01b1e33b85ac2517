package store

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"wayfarer/internal/persistence"
)

// NewMetricsStore returns a Postgres-backed MetricsStore when pool is
// non-nil, otherwise an in-memory one.
func NewMetricsStore(pool *pgxpool.Pool) persistence.MetricsStore {
	if pool == nil {
		return &memMetricsStore{m: make(map[string]persistence.HourlyAggregate)}
	}
	return &pgMetricsStore{pool: pool}
}

type memMetricsStore struct {
	mu sync.Mutex
	m  map[string]persistence.HourlyAggregate
}

func (s *memMetricsStore) Init(ctx context.Context) error { return nil }

func (s *memMetricsStore) UpsertHourly(ctx context.Context, agg persistence.HourlyAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.m[agg.HourStart]
	if !ok {
		s.m[agg.HourStart] = agg
		return nil
	}
	existing.RequestCount += agg.RequestCount
	existing.ErrorCount += agg.ErrorCount
	existing.TotalInputTokens += agg.TotalInputTokens
	existing.TotalOutputTokens += agg.TotalOutputTokens
	existing.TotalCostUSD += agg.TotalCostUSD
	existing.TotalLatencyMS += agg.TotalLatencyMS
	s.m[agg.HourStart] = existing
	return nil
}

func (s *memMetricsStore) GetHourly(ctx context.Context, hourStart string) (persistence.HourlyAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if agg, ok := s.m[hourStart]; ok {
		return agg, nil
	}
	return persistence.HourlyAggregate{}, persistence.ErrNotFound
}

type pgMetricsStore struct {
	pool *pgxpool.Pool
}

func (s *pgMetricsStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS query_metrics_hourly (
    hour_start TEXT PRIMARY KEY,
    request_count INTEGER NOT NULL DEFAULT 0,
    error_count INTEGER NOT NULL DEFAULT 0,
    total_input_tokens BIGINT NOT NULL DEFAULT 0,
    total_output_tokens BIGINT NOT NULL DEFAULT 0,
    total_cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_latency_ms BIGINT NOT NULL DEFAULT 0
);
`)
	return err
}

func (s *pgMetricsStore) UpsertHourly(ctx context.Context, agg persistence.HourlyAggregate) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO query_metrics_hourly
    (hour_start, request_count, error_count, total_input_tokens, total_output_tokens, total_cost_usd, total_latency_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (hour_start) DO UPDATE SET
    request_count = query_metrics_hourly.request_count + EXCLUDED.request_count,
    error_count = query_metrics_hourly.error_count + EXCLUDED.error_count,
    total_input_tokens = query_metrics_hourly.total_input_tokens + EXCLUDED.total_input_tokens,
    total_output_tokens = query_metrics_hourly.total_output_tokens + EXCLUDED.total_output_tokens,
    total_cost_usd = query_metrics_hourly.total_cost_usd + EXCLUDED.total_cost_usd,
    total_latency_ms = query_metrics_hourly.total_latency_ms + EXCLUDED.total_latency_ms`,
		agg.HourStart, agg.RequestCount, agg.ErrorCount, agg.TotalInputTokens, agg.TotalOutputTokens,
		agg.TotalCostUSD, agg.TotalLatencyMS)
	return err
}

func (s *pgMetricsStore) GetHourly(ctx context.Context, hourStart string) (persistence.HourlyAggregate, error) {
	var agg persistence.HourlyAggregate
	agg.HourStart = hourStart
	err := s.pool.QueryRow(ctx, `
SELECT request_count, error_count, total_input_tokens, total_output_tokens, total_cost_usd, total_latency_ms
FROM query_metrics_hourly WHERE hour_start = $1`, hourStart).
		Scan(&agg.RequestCount, &agg.ErrorCount, &agg.TotalInputTokens, &agg.TotalOutputTokens,
			&agg.TotalCostUSD, &agg.TotalLatencyMS)
	if err != nil {
		return persistence.HourlyAggregate{}, persistence.ErrNotFound
	}
	return agg, nil
}
