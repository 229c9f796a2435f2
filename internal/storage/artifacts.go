package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stocksense/stocksense/internal/domain"
)

// RunArtifactStore exports completed simulation runs to object storage: the
// full comparison log as CSV plus the aggregated metrics as JSON, under a
// per-run prefix.
type RunArtifactStore struct {
	store ObjectStorage
}

func NewRunArtifactStore(store ObjectStorage) *RunArtifactStore {
	return &RunArtifactStore{store: store}
}

func (s *RunArtifactStore) Export(ctx context.Context, runID string, result *domain.SimulationResult) error {
	logCSV, err := comparisonLogCSV(result.DailyComparisons)
	if err != nil {
		return fmt.Errorf("encode comparison log: %w", err)
	}
	if err := s.store.UploadObject(ctx, runKey(runID, "comparison_log.csv"), logCSV, "text/csv"); err != nil {
		return err
	}

	metrics, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run metrics: %w", err)
	}
	return s.store.UploadObject(ctx, runKey(runID, "metrics.json"), metrics, "application/json")
}

func runKey(runID, name string) string {
	return fmt.Sprintf("runs/%s/%s", runID, name)
}

func comparisonLogCSV(rows []domain.DailyComparison) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"date", "item_id", "actual_sales",
		"simulated_stock", "real_stock",
		"simulated_stockout", "real_stockout",
		"order_placed", "order_quantity",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, row := range rows {
		record := []string{
			row.Date.Format("2006-01-02"),
			row.ItemID,
			formatFloat(row.ActualSales),
			formatFloat(row.SimulatedStock),
			formatFloat(row.RealStock),
			strconv.FormatBool(row.SimulatedStockout),
			strconv.FormatBool(row.RealStockout),
			strconv.FormatBool(row.OrderPlaced),
			formatFloat(row.OrderQuantity),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
