package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/trendhealth/internal/contracts"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS health_history (
		universe_key                         TEXT        NOT NULL,
		date                                 DATE        NOT NULL,
		regime_label                         TEXT        NOT NULL,
		green_pct                            DOUBLE PRECISION NOT NULL,
		yellow_pct                           DOUBLE PRECISION NOT NULL,
		red_pct                              DOUBLE PRECISION NOT NULL,
		known_count                          INTEGER     NOT NULL,
		unknown_count                        INTEGER     NOT NULL,
		total_tickers                        INTEGER     NOT NULL,
		eligible_count                       INTEGER,
		ineligible_count                     INTEGER,
		missing_count                        INTEGER,
		diffusion_pct                        DOUBLE PRECISION NOT NULL,
		diffusion_count                      INTEGER     NOT NULL,
		diffusion_total_compared             INTEGER     NOT NULL,
		pct_above_upper_band                 DOUBLE PRECISION NOT NULL,
		median_distance_above_upper_band_pct DOUBLE PRECISION NOT NULL,
		stretch200_median_pct                DOUBLE PRECISION NOT NULL,
		heat_score                           DOUBLE PRECISION NOT NULL,
		updated_at                           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (universe_key, date)
	)`

const upsertSQL = `
	INSERT INTO health_history
		(universe_key, date, regime_label, green_pct, yellow_pct, red_pct,
		 known_count, unknown_count, total_tickers, eligible_count, ineligible_count, missing_count,
		 diffusion_pct, diffusion_count, diffusion_total_compared,
		 pct_above_upper_band, median_distance_above_upper_band_pct, stretch200_median_pct, heat_score)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (universe_key, date) DO UPDATE SET
		regime_label = EXCLUDED.regime_label,
		green_pct = EXCLUDED.green_pct,
		yellow_pct = EXCLUDED.yellow_pct,
		red_pct = EXCLUDED.red_pct,
		known_count = EXCLUDED.known_count,
		unknown_count = EXCLUDED.unknown_count,
		total_tickers = EXCLUDED.total_tickers,
		eligible_count = EXCLUDED.eligible_count,
		ineligible_count = EXCLUDED.ineligible_count,
		missing_count = EXCLUDED.missing_count,
		diffusion_pct = EXCLUDED.diffusion_pct,
		diffusion_count = EXCLUDED.diffusion_count,
		diffusion_total_compared = EXCLUDED.diffusion_total_compared,
		pct_above_upper_band = EXCLUDED.pct_above_upper_band,
		median_distance_above_upper_band_pct = EXCLUDED.median_distance_above_upper_band_pct,
		stretch200_median_pct = EXCLUDED.stretch200_median_pct,
		heat_score = EXCLUDED.heat_score,
		updated_at = NOW()`

// PGMirror mirrors health points into Postgres
type PGMirror struct {
	pool *pgxpool.Pool
}

// NewPGMirror creates a mirror on an existing pool
func NewPGMirror(pool *pgxpool.Pool) *PGMirror {
	return &PGMirror{pool: pool}
}

// EnsureSchema creates the health_history table if missing
func (m *PGMirror) EnsureSchema(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create health_history: %w", err)
	}
	return nil
}

// Upsert writes points keyed by (universe_key, date)
func (m *PGMirror) Upsert(ctx context.Context, key string, points []contracts.HealthHistoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(upsertSQL, key, p.Date, string(p.RegimeLabel), p.GreenPct, p.YellowPct, p.RedPct,
			p.KnownCount, p.UnknownCount, p.TotalTickers, p.EligibleCount, p.IneligibleCount, p.MissingCount,
			p.DiffusionPct, p.DiffusionCount, p.DiffusionTotalCompared,
			p.PctAboveUpperBand, p.MedianDistanceAboveUpperBandPct, p.Stretch200MedianPct, p.HeatScore)
	}

	br := m.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert health_history %s: %w", key, err)
		}
	}
	return nil
}

// Points reads the mirrored points of key, ascending by date
func (m *PGMirror) Points(ctx context.Context, key string) ([]contracts.HealthHistoryPoint, error) {
	query := `
		SELECT to_char(date, 'YYYY-MM-DD'), regime_label, green_pct, yellow_pct, red_pct,
			   known_count, unknown_count, total_tickers, eligible_count, ineligible_count, missing_count,
			   diffusion_pct, diffusion_count, diffusion_total_compared,
			   pct_above_upper_band, median_distance_above_upper_band_pct, stretch200_median_pct, heat_score
		FROM health_history
		WHERE universe_key = $1
		ORDER BY date`

	rows, err := m.pool.Query(ctx, query, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]contracts.HealthHistoryPoint, 0)
	for rows.Next() {
		var p contracts.HealthHistoryPoint
		var regime string
		if err := rows.Scan(
			&p.Date, &regime, &p.GreenPct, &p.YellowPct, &p.RedPct,
			&p.KnownCount, &p.UnknownCount, &p.TotalTickers, &p.EligibleCount, &p.IneligibleCount, &p.MissingCount,
			&p.DiffusionPct, &p.DiffusionCount, &p.DiffusionTotalCompared,
			&p.PctAboveUpperBand, &p.MedianDistanceAboveUpperBandPct, &p.Stretch200MedianPct, &p.HeatScore,
		); err != nil {
			return nil, err
		}
		p.RegimeLabel = contracts.RegimeLabel(regime)
		points = append(points, p)
	}
	return points, rows.Err()
}
