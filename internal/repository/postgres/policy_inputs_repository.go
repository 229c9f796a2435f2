package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/stocksense/stocksense/internal/domain"
)

// PolicyInputsRepository loads per-item reference data for the policy
// calculator. Lead time and MOQ come from the supplier condition flagged as
// primary; items without one fall back to the engine defaults in SQL so the
// caller never sees a partially filled row.
type PolicyInputsRepository struct {
	db *DB
}

func NewPolicyInputsRepository(db *DB) *PolicyInputsRepository {
	return &PolicyInputsRepository{db: db}
}

func (r *PolicyInputsRepository) FetchPolicyInputs(ctx context.Context, itemIDs []string) (map[string]domain.ItemPolicyInputs, error) {
	query := `
		SELECT
			i.item_id,
			COALESCE(i.unit_cost, 0) AS unit_cost,
			COALESCE(i.safety_buffer_days, $2) AS safety_buffer_days,
			COALESCE(i.service_level, $3) AS service_level,
			COALESCE(sc.lead_time_days, $4) AS lead_time_days,
			COALESCE(sc.moq, 0) AS moq
		FROM items i
		LEFT JOIN supplier_conditions sc
			ON sc.item_id = i.item_id AND sc.is_primary
		WHERE i.item_id = ANY($1)
	`

	var rows []domain.ItemPolicyInputs
	err := r.db.SelectContext(ctx, &rows, query,
		pq.Array(itemIDs),
		float64(domain.DefaultSafetyBufferDays),
		domain.DefaultServiceLevel,
		domain.DefaultLeadTimeDays,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch policy inputs: %w", err)
	}

	out := make(map[string]domain.ItemPolicyInputs, len(rows))
	for _, row := range rows {
		out[row.ItemID] = row
	}
	return out, nil
}
