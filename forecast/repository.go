package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"app/models"
)

// Repository is the data-access collaborator injected into the Service.
type Repository interface {
	// GetSales returns raw observations in [from, to] ordered by date,
	// optionally filtered to productIDs.
	GetSales(ctx context.Context, from, to time.Time, productIDs []string) ([]models.SalesFact, error)
	// GetLatestSales returns the most recent minDays window ending at the
	// latest available date for the products.
	GetLatestSales(ctx context.Context, productIDs []string, minDays int) ([]models.SalesFact, error)
	// GetActiveModelPath returns the active artifact's file path, "" when none.
	GetActiveModelPath(ctx context.Context) (string, error)
	// GetActiveModelVersion returns the active artifact's version, "" when none.
	GetActiveModelVersion(ctx context.Context) (string, error)
	// CreateModelArtifact deactivates all prior artifacts and inserts the new
	// one as active, atomically.
	CreateModelArtifact(ctx context.Context, version, filePath string, trainedAt, dataFrom, dataTo time.Time, mae, mape float64) (*models.ModelArtifact, error)
}

// PgRepository is the PostgreSQL-backed Repository.
type PgRepository struct {
	db *pgxpool.Pool
}

func NewPgRepository(db *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: db}
}

const salesFactColumns = "id, product_id, date, quantity, revenue, price, promo_flag, category_id, source, created_at"

func scanSalesFacts(rows pgx.Rows) ([]models.SalesFact, error) {
	defer rows.Close()
	var facts []models.SalesFact
	for rows.Next() {
		var f models.SalesFact
		if err := rows.Scan(&f.ID, &f.ProductID, &f.Date, &f.Quantity, &f.Revenue, &f.Price, &f.PromoFlag, &f.CategoryID, &f.Source, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sales fact: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (r *PgRepository) GetSales(ctx context.Context, from, to time.Time, productIDs []string) ([]models.SalesFact, error) {
	query := `
		SELECT ` + salesFactColumns + `
		FROM sales_facts
		WHERE date >= $1 AND date <= $2
	`
	args := []interface{}{from, to}
	if len(productIDs) > 0 {
		query += " AND product_id = ANY($3)"
		args = append(args, productIDs)
	}
	query += " ORDER BY date"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales facts: %w", err)
	}
	return scanSalesFacts(rows)
}

func (r *PgRepository) GetLatestSales(ctx context.Context, productIDs []string, minDays int) ([]models.SalesFact, error) {
	var latest *time.Time
	err := r.db.QueryRow(ctx,
		`SELECT MAX(date) FROM sales_facts WHERE product_id = ANY($1)`,
		productIDs,
	).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest sales date: %w", err)
	}
	if latest == nil {
		return nil, nil
	}
	start := latest.AddDate(0, 0, -minDays)
	return r.GetSales(ctx, start, *latest, productIDs)
}

func (r *PgRepository) GetActiveModelPath(ctx context.Context) (string, error) {
	var path string
	err := r.db.QueryRow(ctx,
		`SELECT file_path FROM model_artifacts WHERE is_active = TRUE LIMIT 1`,
	).Scan(&path)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query active model path: %w", err)
	}
	return path, nil
}

func (r *PgRepository) GetActiveModelVersion(ctx context.Context) (string, error) {
	var version string
	err := r.db.QueryRow(ctx,
		`SELECT version FROM model_artifacts WHERE is_active = TRUE LIMIT 1`,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query active model version: %w", err)
	}
	return version, nil
}

// CreateModelArtifact runs in one transaction so concurrent readers never
// observe zero or multiple active artifacts.
func (r *PgRepository) CreateModelArtifact(ctx context.Context, version, filePath string, trainedAt, dataFrom, dataTo time.Time, mae, mape float64) (*models.ModelArtifact, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE model_artifacts SET is_active = FALSE WHERE is_active = TRUE`); err != nil {
		return nil, fmt.Errorf("failed to deactivate prior artifacts: %w", err)
	}

	art := &models.ModelArtifact{
		Version:   version,
		FilePath:  filePath,
		TrainedAt: trainedAt,
		DataFrom:  dataFrom,
		DataTo:    dataTo,
		MAE:       mae,
		MAPE:      mape,
		IsActive:  true,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO model_artifacts (version, file_path, trained_at, data_from, data_to, mae, mape, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id, created_at
	`, version, filePath, trainedAt, dataFrom, dataTo, mae, mape).Scan(&art.ID, &art.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert model artifact: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return art, nil
}
