package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stocksense/stocksense/internal/domain"
)

// ForecastSink persists generated forecasts: one header row per result and
// one row per predicted day.
type ForecastSink struct {
	db *DB
}

func NewForecastSink(db *DB) *ForecastSink {
	return &ForecastSink{db: db}
}

func (s *ForecastSink) SaveForecasts(ctx context.Context, results []domain.ForecastResult) error {
	if len(results) == 0 {
		return nil
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		header := `
			INSERT INTO forecasts (item_id, method, training_end_date, fallback, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`
		pointQuery := `
			INSERT INTO forecast_points (forecast_id, target_date, value)
			VALUES ($1, $2, $3)
		`

		stmt, err := tx.PrepareContext(ctx, pointQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		now := time.Now()
		for _, result := range results {
			var forecastID int64
			err := tx.QueryRowContext(ctx, header,
				result.ItemID,
				string(result.Method),
				result.TrainingEndDate,
				result.Fallback,
				now,
			).Scan(&forecastID)
			if err != nil {
				return fmt.Errorf("failed to insert forecast for %s: %w", result.ItemID, err)
			}

			for _, point := range result.Predictions {
				if _, err := stmt.ExecContext(ctx, forecastID, point.Date, point.Value); err != nil {
					return fmt.Errorf("failed to insert forecast point: %w", err)
				}
			}
		}

		return nil
	})
}
