package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/stocksense/stocksense/internal/cache"
	"github.com/stocksense/stocksense/internal/config"
	"github.com/stocksense/stocksense/internal/domain"
	"github.com/stocksense/stocksense/internal/forecast"
	"github.com/stocksense/stocksense/internal/repository/postgres"
	"github.com/stocksense/stocksense/internal/service"
	"github.com/stocksense/stocksense/internal/simulation"
	"github.com/stocksense/stocksense/internal/storage"
)

const dateLayout = "2006-01-02"

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func newItemsFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "items",
		Usage:    "Comma-separated item IDs",
		Required: true,
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "simulate",
		Usage: "Run inventory decision simulations against historical demand",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Replay a date range day by day and compare simulated against real outcomes",
				Flags: []cli.Flag{
					newDBURLFlag(),
					newItemsFlag(),
					&cli.StringFlag{
						Name:     "start",
						Usage:    "Simulation start date (YYYY-MM-DD)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "end",
						Usage:    "Simulation end date (YYYY-MM-DD)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "cadence",
						Usage: "Forecast refresh cadence in days",
					},
					&cli.IntFlag{
						Name:  "horizon",
						Usage: "Forecast horizon in days",
					},
					&cli.StringFlag{
						Name:  "method",
						Usage: "Force one forecasting method for every item",
					},
					&cli.StringFlag{
						Name:  "run-id",
						Usage: "Run identifier for artifact export",
					},
					&cli.BoolFlag{
						Name:  "persist-forecasts",
						Usage: "Save generated forecasts to the database",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Write the full result JSON to a file instead of stdout",
					},
					&cli.StringFlag{
						Name:  "status-addr",
						Usage: "Serve /health and /progress on this address while running",
					},
				},
				Action: runSimulation,
			},
			{
				Name:  "classify",
				Usage: "Print the ABC-XYZ classification and recommended method for one item",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:     "item",
						Usage:    "Item ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "as-of",
						Usage: "Classify with data up to this date (YYYY-MM-DD)",
					},
				},
				Action: runClassify,
			},
			{
				Name:  "forecast",
				Usage: "Generate forecasts for a set of items",
				Flags: []cli.Flag{
					newDBURLFlag(),
					newItemsFlag(),
					&cli.IntFlag{
						Name:  "horizon",
						Usage: "Forecast horizon in days",
						Value: 30,
					},
					&cli.StringFlag{
						Name:  "training-end",
						Usage: "Train only on data up to this date (YYYY-MM-DD)",
					},
					&cli.StringFlag{
						Name:  "method",
						Usage: "Force one forecasting method",
					},
					&cli.BoolFlag{
						Name:  "all-methods",
						Usage: "Also produce one result per supported method",
					},
					&cli.BoolFlag{
						Name:  "persist",
						Usage: "Save generated forecasts to the database",
					},
				},
				Action: runForecast,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// buildService wires the engine service against the database named by the
// db-url flag. Everything else comes from the environment config.
func buildService(c *cli.Context) (*service.EngineService, *postgres.DB, error) {
	cfg := config.Load()

	db, err := postgres.NewDBFromURL("pgx", c.String("db-url"))
	if err != nil {
		return nil, nil, err
	}

	var artifacts *storage.RunArtifactStore
	if cfg.Export.Enabled {
		client, err := storage.NewMinioClient(cfg.Export)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("initialize artifact storage: %w", err)
		}
		artifacts = storage.NewRunArtifactStore(client)
	}

	var transformer forecast.TransformerBackend
	if cfg.Engine.TransformerURL != "" {
		transformer = forecast.NewTransformerClient(
			cfg.Engine.TransformerURL,
			time.Duration(cfg.Engine.TransformerTimeoutMS)*time.Millisecond,
		)
	}

	svc := service.NewEngineService(
		postgres.NewDemandRepository(db),
		postgres.NewPolicyInputsRepository(db),
		postgres.NewForecastSink(db),
		transformer,
		cache.NewNoopClassificationCache(),
		artifacts,
		cfg.Engine,
	)
	return svc, db, nil
}

func runSimulation(c *cli.Context) error {
	svc, db, err := buildService(c)
	if err != nil {
		return err
	}
	defer db.Close()

	start, err := time.Parse(dateLayout, c.String("start"))
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse(dateLayout, c.String("end"))
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}

	cfg := simulation.Config{
		ItemIDs:             splitItems(c.String("items")),
		StartDate:           start,
		EndDate:             end,
		ForecastCadenceDays: c.Int("cadence"),
		ForecastHorizonDays: c.Int("horizon"),
		SkipPersist:         !c.Bool("persist-forecasts"),
	}
	if raw := c.String("method"); raw != "" {
		method, err := domain.ParseForecastMethod(raw)
		if err != nil {
			return err
		}
		cfg.MethodOverride = method
	}

	// Day-level progress, shared between the terminal bar and the status
	// endpoint.
	var currentDay, totalDays atomic.Int64
	var bar *progressbar.ProgressBar
	onDay := func(day time.Time, index, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total))
			totalDays.Store(int64(total))
		}
		_ = bar.Add(1)
		currentDay.Store(int64(index + 1))
	}

	if addr := c.String("status-addr"); addr != "" {
		go serveStatus(addr, &currentDay, &totalDays)
	}

	result, err := svc.SimulateWithProgress(c.Context, c.String("run-id"), cfg, onDay)
	if err != nil {
		return err
	}

	if out := c.String("out"); out != "" {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, payload, 0o644); err != nil {
			return fmt.Errorf("write result to %s: %w", out, err)
		}
		return printSummary(result)
	}

	return printJSON(result)
}

// serveStatus exposes liveness and run progress for operators watching a
// long replay.
func serveStatus(addr string, currentDay, totalDays *atomic.Int64) {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")
	r.HandleFunc("/progress", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{
			"completed_days": currentDay.Load(),
			"total_days":     totalDays.Load(),
		})
	}).Methods("GET")

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Printf("status listener stopped: %v", err)
	}
}

func printSummary(result *domain.SimulationResult) error {
	summary := map[string]interface{}{
		"start_date":     result.StartDate.Format(dateLayout),
		"end_date":       result.EndDate.Format(dateLayout),
		"items":          len(result.PerItem),
		"skipped_items":  result.SkippedItems,
		"global_metrics": result.Global,
	}
	return printJSON(summary)
}

func runClassify(c *cli.Context) error {
	svc, db, err := buildService(c)
	if err != nil {
		return err
	}
	defer db.Close()

	var asOf time.Time
	if raw := c.String("as-of"); raw != "" {
		asOf, err = time.Parse(dateLayout, raw)
		if err != nil {
			return fmt.Errorf("invalid as-of date: %w", err)
		}
	}

	cls, err := svc.Classify(c.Context, c.String("item"), asOf)
	if err != nil {
		return err
	}
	return printJSON(cls)
}

func runForecast(c *cli.Context) error {
	svc, db, err := buildService(c)
	if err != nil {
		return err
	}
	defer db.Close()

	req := service.ForecastRequest{
		ItemIDs:       splitItems(c.String("items")),
		HorizonDays:   c.Int("horizon"),
		RunAllMethods: c.Bool("all-methods"),
		SkipPersist:   !c.Bool("persist"),
	}
	if raw := c.String("training-end"); raw != "" {
		req.TrainingEnd, err = time.Parse(dateLayout, raw)
		if err != nil {
			return fmt.Errorf("invalid training-end date: %w", err)
		}
	}
	if raw := c.String("method"); raw != "" {
		req.Method, err = domain.ParseForecastMethod(raw)
		if err != nil {
			return err
		}
	}

	results, err := svc.Forecast(c.Context, req)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func splitItems(raw string) []string {
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			items = append(items, p)
		}
	}
	return items
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
