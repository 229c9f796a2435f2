package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/stocksense/stocksense/internal/config"
	"github.com/stocksense/stocksense/internal/storage"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "seed",
		Usage: "Seed the database with reference data and demand history",
		Commands: []*cli.Command{
			{
				Name:  "master",
				Usage: "Seed items and supplier conditions",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing master seed data",
						Value:   "./data/seeds/master_data",
						EnvVars: []string{"SEED_DATA_DIR"},
					},
				},
				Action: seedMaster,
			},
			{
				Name:  "demand",
				Usage: "Seed daily demand observations from CSV files",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing demand observation CSV files",
						Value:   "./data/seeds/demand",
						EnvVars: []string{"SEED_DEMAND_DIR"},
					},
				},
				Action: seedDemand,
			},
			{
				Name:  "fetch",
				Usage: "Download seed CSV files from object storage",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Object key prefix to download",
						Value: "seeds/",
					},
					&cli.StringFlag{
						Name:  "dest",
						Usage: "Local directory to download into",
						Value: "./data/seeds",
					},
				},
				Action: fetchSeeds,
			},
			{
				Name:  "all",
				Usage: "Seed master data and demand history",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing master seed data",
						Value:   "./data/seeds/master_data",
						EnvVars: []string{"SEED_DATA_DIR"},
					},
					&cli.StringFlag{
						Name:    "demand-dir",
						Usage:   "Directory containing demand observation CSV files",
						Value:   "./data/seeds/demand",
						EnvVars: []string{"SEED_DEMAND_DIR"},
					},
				},
				Action: func(c *cli.Context) error {
					if err := seedMaster(c); err != nil {
						return fmt.Errorf("error seeding master data: %w", err)
					}
					if err := seedDemand(c); err != nil {
						return fmt.Errorf("error seeding demand data: %w", err)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openDB(c *cli.Context) (*sql.DB, error) {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func seedMaster(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	dataDir := c.String("data-dir")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	log.Println("Starting master data seeding...")

	if err := seedItems(ctx, tx, filepath.Join(dataDir, "items.csv")); err != nil {
		return fmt.Errorf("failed to seed items: %w", err)
	}
	if err := seedSupplierConditions(ctx, tx, filepath.Join(dataDir, "supplier_conditions.csv")); err != nil {
		return fmt.Errorf("failed to seed supplier conditions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Println("Master data seeding completed successfully!")
	return nil
}

// seedItems loads items.csv with columns:
// item_id,name,unit_cost,unit_price,safety_buffer_days,service_level
func seedItems(ctx context.Context, tx *sql.Tx, filePath string) error {
	log.Printf("Seeding items from %s\n", filePath)

	const query = `
		INSERT INTO items (item_id, name, unit_cost, unit_price, safety_buffer_days, service_level)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (item_id) DO UPDATE SET
			name = EXCLUDED.name,
			unit_cost = EXCLUDED.unit_cost,
			unit_price = EXCLUDED.unit_price,
			safety_buffer_days = EXCLUDED.safety_buffer_days,
			service_level = EXCLUDED.service_level,
			updated_at = NOW()
	`

	return forEachRecord(ctx, tx, filePath, query, func(record []string) ([]interface{}, error) {
		if len(record) < 6 {
			return nil, fmt.Errorf("expected 6 columns, got %d", len(record))
		}
		unitCost, err := parseNullableFloat(record[2])
		if err != nil {
			return nil, fmt.Errorf("invalid unit_cost: %w", err)
		}
		unitPrice, err := parseNullableFloat(record[3])
		if err != nil {
			return nil, fmt.Errorf("invalid unit_price: %w", err)
		}
		buffer, err := parseNullableFloat(record[4])
		if err != nil {
			return nil, fmt.Errorf("invalid safety_buffer_days: %w", err)
		}
		serviceLevel, err := parseNullableFloat(record[5])
		if err != nil {
			return nil, fmt.Errorf("invalid service_level: %w", err)
		}
		return []interface{}{record[0], record[1], unitCost, unitPrice, buffer, serviceLevel}, nil
	})
}

// seedSupplierConditions loads supplier_conditions.csv with columns:
// item_id,supplier_name,lead_time_days,moq,is_primary
func seedSupplierConditions(ctx context.Context, tx *sql.Tx, filePath string) error {
	log.Printf("Seeding supplier conditions from %s\n", filePath)

	const query = `
		INSERT INTO supplier_conditions (item_id, supplier_name, lead_time_days, moq, is_primary)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id, supplier_name) DO UPDATE SET
			lead_time_days = EXCLUDED.lead_time_days,
			moq = EXCLUDED.moq,
			is_primary = EXCLUDED.is_primary,
			updated_at = NOW()
	`

	return forEachRecord(ctx, tx, filePath, query, func(record []string) ([]interface{}, error) {
		if len(record) < 5 {
			return nil, fmt.Errorf("expected 5 columns, got %d", len(record))
		}
		leadTime := 0
		if record[2] != "" {
			leadTime, _ = strconv.Atoi(record[2])
		}
		moq, err := parseNullableFloat(record[3])
		if err != nil {
			return nil, fmt.Errorf("invalid moq: %w", err)
		}
		isPrimary := strings.EqualFold(strings.TrimSpace(record[4]), "true")
		return []interface{}{record[0], record[1], leadTime, moq, isPrimary}, nil
	})
}

func seedDemand(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}
	defer db.Close()

	dataDir := c.String("demand-dir")
	if dataDir == "" {
		dataDir = c.String("data-dir")
	}

	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv"))
	if err != nil {
		return fmt.Errorf("failed to list demand files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no CSV files found in %s", dataDir)
	}

	ctx := context.Background()
	for _, file := range files {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := seedDemandFile(ctx, tx, file); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to seed %s: %w", file, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit %s: %w", file, err)
		}
	}

	log.Println("Demand seeding completed successfully!")
	return nil
}

// seedDemandFile loads one demand CSV with columns:
// item_id,sale_date,units_sold,stock_on_date
func seedDemandFile(ctx context.Context, tx *sql.Tx, filePath string) error {
	log.Printf("Seeding demand observations from %s\n", filePath)

	const query = `
		INSERT INTO demand_observations (item_id, sale_date, units_sold, stock_on_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (item_id, sale_date) DO UPDATE SET
			units_sold = EXCLUDED.units_sold,
			stock_on_date = EXCLUDED.stock_on_date
	`

	return forEachRecord(ctx, tx, filePath, query, func(record []string) ([]interface{}, error) {
		if len(record) < 4 {
			return nil, fmt.Errorf("expected 4 columns, got %d", len(record))
		}
		units, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid units_sold: %w", err)
		}
		stock, err := parseNullableFloat(record[3])
		if err != nil {
			return nil, fmt.Errorf("invalid stock_on_date: %w", err)
		}
		return []interface{}{record[0], record[1], units, stock}, nil
	})
}

// forEachRecord streams one CSV file through a prepared statement, skipping
// the header row.
func forEachRecord(ctx context.Context, tx *sql.Tx, filePath, query string, bind func([]string) ([]interface{}, error)) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	rowCount := 0
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read CSV record: %w", err)
		}

		args, err := bind(record)
		if err != nil {
			return fmt.Errorf("row %d: %w", rowCount+2, err)
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}

		rowCount++
		if rowCount%5000 == 0 {
			log.Printf("Seeded %d records...", rowCount)
		}
	}

	log.Printf("Successfully seeded %d records from %s\n", rowCount, filepath.Base(filePath))
	return nil
}

// fetchSeeds downloads seed CSVs from the configured export bucket.
func fetchSeeds(c *cli.Context) error {
	cfg := config.Load()
	client, err := storage.NewMinioClient(cfg.Export)
	if err != nil {
		return fmt.Errorf("failed to initialize storage client: %w", err)
	}

	prefix := c.String("prefix")
	dest := c.String("dest")

	objects, err := client.ListObjects(c.Context, prefix)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return fmt.Errorf("no objects found under prefix %s", prefix)
	}

	for _, object := range objects {
		local := filepath.Join(dest, strings.TrimPrefix(object.Key, prefix))
		if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
			return fmt.Errorf("failed creating directory for %s: %w", local, err)
		}
		log.Printf("Downloading %s (%d bytes) -> %s", object.Key, object.Size, local)
		if err := client.DownloadObject(c.Context, object.Key, local); err != nil {
			return err
		}
	}

	log.Printf("Downloaded %d objects to %s", len(objects), dest)
	return nil
}

func parseNullableFloat(value string) (sql.NullFloat64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return sql.NullFloat64{}, nil
	}

	cleaned := strings.ReplaceAll(value, ",", "")
	num, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return sql.NullFloat64{}, fmt.Errorf("invalid float value %s: %w", value, err)
	}

	return sql.NullFloat64{Float64: num, Valid: true}, nil
}
