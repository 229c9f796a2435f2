package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/stocksense/stocksense/internal/domain"
)

// DemandRepository reads daily sales observations. Every query takes an
// explicit date bound so callers decide how much history they are allowed
// to see; FetchUpTo is the cutoff boundary backtests rely on.
type DemandRepository struct {
	db *DB
}

func NewDemandRepository(db *DB) *DemandRepository {
	return &DemandRepository{db: db}
}

func (r *DemandRepository) FetchRange(ctx context.Context, itemIDs []string, start, end time.Time) (map[string][]domain.DemandObservation, error) {
	query := `
		SELECT item_id, sale_date, units_sold, stock_on_date
		FROM demand_observations
		WHERE item_id = ANY($1)
		  AND sale_date >= $2
		  AND sale_date <= $3
		ORDER BY item_id, sale_date ASC
	`

	var rows []domain.DemandObservation
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(itemIDs), start, end); err != nil {
		return nil, fmt.Errorf("failed to fetch demand observations: %w", err)
	}

	return groupByItem(rows), nil
}

// FetchUpTo returns all observations dated at or before the cutoff. The
// bound lives in the SQL itself so no later-dated row can reach a caller.
func (r *DemandRepository) FetchUpTo(ctx context.Context, itemIDs []string, cutoff time.Time) (map[string][]domain.DemandObservation, error) {
	query := `
		SELECT item_id, sale_date, units_sold, stock_on_date
		FROM demand_observations
		WHERE item_id = ANY($1)
		  AND sale_date <= $2
		ORDER BY item_id, sale_date ASC
	`

	var rows []domain.DemandObservation
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(itemIDs), cutoff); err != nil {
		return nil, fmt.Errorf("failed to fetch training history: %w", err)
	}

	return groupByItem(rows), nil
}

// RevenueByItem sums revenue over the windowDays days ending at end, for
// every item with sales in the window. Items without a price contribute
// unit revenue so they still rank.
func (r *DemandRepository) RevenueByItem(ctx context.Context, end time.Time, windowDays int) (map[string]float64, error) {
	start := end.AddDate(0, 0, -windowDays)

	query := `
		SELECT d.item_id, SUM(d.units_sold * COALESCE(i.unit_price, 1)) AS revenue
		FROM demand_observations d
		LEFT JOIN items i ON i.item_id = d.item_id
		WHERE d.sale_date > $1 AND d.sale_date <= $2
		GROUP BY d.item_id
	`

	var rows []struct {
		ItemID  string  `db:"item_id"`
		Revenue float64 `db:"revenue"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, start, end); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}

	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.ItemID] = row.Revenue
	}
	return out, nil
}

func groupByItem(rows []domain.DemandObservation) map[string][]domain.DemandObservation {
	out := make(map[string][]domain.DemandObservation)
	for _, row := range rows {
		out[row.ItemID] = append(out[row.ItemID], row)
	}
	return out
}
