package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"fairval/apperrors"
	"fairval/models"
)

const trackingColumns = `t.id, t.purchase_id, p.user_id, t.product_url, t.product_name,
		t.original_price, t.current_price, t.lowest_price, t.price_history,
		t.tracking_active, t.last_checked, t.created_at`

// TrackingRepository reads and writes price_tracking rows.
type TrackingRepository struct {
	db *sql.DB
}

func NewTrackingRepository(db *sql.DB) *TrackingRepository {
	return &TrackingRepository{db: db}
}

// ListDue returns up to limit active records not checked since staleBefore,
// never-checked records first.
func (r *TrackingRepository) ListDue(ctx context.Context, staleBefore time.Time, limit int) ([]models.TrackingRecord, error) {
	query := `
		SELECT ` + trackingColumns + `
		FROM price_tracking t
		JOIN purchases p ON p.id = t.purchase_id
		WHERE t.tracking_active = true
		  AND (t.last_checked IS NULL OR t.last_checked < $1)
		ORDER BY t.last_checked ASC NULLS FIRST
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due tracking records: %w", err)
	}
	defer rows.Close()

	return scanTrackingRows(rows)
}

// ListByUser returns the active records of one user's purchases.
func (r *TrackingRepository) ListByUser(ctx context.Context, userID string) ([]models.TrackingRecord, error) {
	query := `
		SELECT ` + trackingColumns + `
		FROM price_tracking t
		JOIN purchases p ON p.id = t.purchase_id
		WHERE p.user_id = $1 AND t.tracking_active = true
		ORDER BY t.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapPQError("failed to list tracking records", err)
	}
	defer rows.Close()

	return scanTrackingRows(rows)
}

// Create inserts a new active record whose history starts with first.
func (r *TrackingRepository) Create(ctx context.Context, record *models.TrackingRecord, first models.PricePoint) (*models.TrackingRecord, error) {
	history, err := json.Marshal([]models.PricePoint{first})
	if err != nil {
		return nil, fmt.Errorf("failed to encode price history: %w", err)
	}

	query := `
		INSERT INTO price_tracking (purchase_id, product_url, product_name, original_price,
			current_price, lowest_price, price_history, tracking_active, last_checked)
		VALUES ($1, $2, $3, $4, $5, $5, $6::jsonb, true, $7)
		RETURNING id, created_at
	`

	created := *record
	created.TrackingActive = true
	created.CurrentPrice = decimal.NewNullDecimal(first.Price)
	created.LowestPrice = decimal.NewNullDecimal(first.Price)
	created.PriceHistory = []models.PricePoint{first}
	checkedAt := first.Date
	created.LastChecked = &checkedAt

	err = r.db.QueryRowContext(ctx, query,
		record.PurchaseID, record.ProductURL, record.ProductName, record.OriginalPrice,
		first.Price, string(history), first.Date,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, mapPQError("failed to create tracking record", err)
	}

	return &created, nil
}

// RecordPrice appends a price point and updates current, lowest and
// drop columns in one statement.
func (r *TrackingRepository) RecordPrice(ctx context.Context, id string, update models.PriceUpdate) error {
	point, err := json.Marshal([]models.PricePoint{update.Point})
	if err != nil {
		return fmt.Errorf("failed to encode price point: %w", err)
	}

	var dropAmount decimal.NullDecimal
	var dropDate sql.NullTime
	if update.DropDetected {
		dropAmount = decimal.NewNullDecimal(update.DropAmount)
		dropDate = sql.NullTime{Time: update.CheckedAt, Valid: true}
	}

	query := `
		UPDATE price_tracking
		SET current_price = $2,
			lowest_price = LEAST(COALESCE(lowest_price, $2), $2),
			price_history = COALESCE(price_history, '[]'::jsonb) || $3::jsonb,
			last_checked = $4,
			price_drop_detected = $5,
			price_drop_amount = $6,
			price_drop_date = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		id, update.CurrentPrice, string(point), update.CheckedAt,
		update.DropDetected, dropAmount, dropDate,
	)
	if err != nil {
		return fmt.Errorf("failed to record price for %s: %w", id, err)
	}
	return requireRow(result, id)
}

// MarkChecked only bumps last_checked. Used when the price is unknown.
func (r *TrackingRepository) MarkChecked(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE price_tracking SET last_checked = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark %s checked: %w", id, err)
	}
	return requireRow(result, id)
}

// Deactivate stops tracking a record.
func (r *TrackingRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE price_tracking SET tracking_active = false WHERE id = $1 AND tracking_active = true`, id)
	if err != nil {
		return mapPQError("failed to deactivate "+id, err)
	}
	return requireRow(result, id)
}

func scanTrackingRows(rows *sql.Rows) ([]models.TrackingRecord, error) {
	records := []models.TrackingRecord{}
	for rows.Next() {
		var (
			record      models.TrackingRecord
			history     []byte
			lastChecked sql.NullTime
		)
		err := rows.Scan(
			&record.ID, &record.PurchaseID, &record.UserID, &record.ProductURL, &record.ProductName,
			&record.OriginalPrice, &record.CurrentPrice, &record.LowestPrice, &history,
			&record.TrackingActive, &lastChecked, &record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracking record: %w", err)
		}
		if len(history) > 0 {
			if err := json.Unmarshal(history, &record.PriceHistory); err != nil {
				return nil, fmt.Errorf("failed to decode price history of %s: %w", record.ID, err)
			}
		}
		if lastChecked.Valid {
			t := lastChecked.Time
			record.LastChecked = &t
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tracking records: %w", err)
	}
	return records, nil
}

func requireRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("tracking record %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// mapPQError turns constraint violations and malformed ids into domain
// errors.
func mapPQError(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", msg, apperrors.ErrConflict)
		case "23503":
			return fmt.Errorf("%s: purchase does not exist: %w", msg, apperrors.ErrNotFound)
		case "22P02":
			return fmt.Errorf("%s: malformed id: %w", msg, apperrors.ErrValidation)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
