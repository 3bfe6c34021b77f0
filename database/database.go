package database

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is a global variable to hold the database connection pool.
var DB *pgxpool.Pool

// Connect sets up the database connection pool.
func Connect(databaseURL string) {
	var err error
	DB, err = pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}

	// Optional: Check if the connection is actually working
	err = DB.Ping(context.Background())
	if err != nil {
		log.Fatalf("Database ping failed: %v\n", err)
	}

	log.Println("Successfully connected to the database")
}

// GetDB returns the database connection pool.
func GetDB() *pgxpool.Pool {
	return DB
}

// Close closes the database connection pool.
func Close() {
	if DB != nil {
		DB.Close()
		log.Println("Database connection pool closed")
	}
}

// EnsureSchema creates the forecasting tables when they do not exist yet.
func EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sales_facts (
			id BIGSERIAL PRIMARY KEY,
			product_id VARCHAR(64) NOT NULL,
			date DATE NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			revenue DOUBLE PRECISION NOT NULL,
			price DOUBLE PRECISION,
			promo_flag BOOLEAN NOT NULL DEFAULT FALSE,
			category_id VARCHAR(64),
			source VARCHAR(64),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_sales_facts_product_id ON sales_facts (product_id);
		CREATE INDEX IF NOT EXISTS idx_sales_facts_date ON sales_facts (date);

		CREATE TABLE IF NOT EXISTS model_artifacts (
			id BIGSERIAL PRIMARY KEY,
			version VARCHAR(32) NOT NULL UNIQUE,
			file_path VARCHAR(256) NOT NULL,
			trained_at TIMESTAMPTZ NOT NULL,
			data_from DATE NOT NULL,
			data_to DATE NOT NULL,
			mae DOUBLE PRECISION,
			mape DOUBLE PRECISION,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	_, err := DB.Exec(ctx, schema)
	return err
}
