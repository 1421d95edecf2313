package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairval/apperrors"
	"fairval/models"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var trackingRowColumns = []string{
	"id", "purchase_id", "user_id", "product_url", "product_name",
	"original_price", "current_price", "lowest_price", "price_history",
	"tracking_active", "last_checked", "created_at",
}

func TestListDue(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTrackingRepository(db)

	staleBefore := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	checked := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	created := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(trackingRowColumns).
		AddRow("t1", "p1", "u1", "https://www.amazon.com/dp/1", "Kettle",
			"49.99", "45.00", "44.50", []byte(`[{"date":"2026-10-16T08:00:00Z","price":45,"available":true}]`),
			true, checked, created).
		AddRow("t2", "p2", "u2", "https://shop.example/p", "Lamp",
			"20.00", nil, nil, nil,
			true, nil, created)

	mock.ExpectQuery(regexp.QuoteMeta("FROM price_tracking t")).
		WithArgs(staleBefore, 50).
		WillReturnRows(rows)

	records, err := repo.ListDue(context.Background(), staleBefore, 50)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, "49.99", first.OriginalPrice.String())
	assert.True(t, first.CurrentPrice.Valid)
	assert.Equal(t, "44.5", first.LowestPrice.Decimal.String())
	require.Len(t, first.PriceHistory, 1)
	assert.Equal(t, "45", first.PriceHistory[0].Price.String())
	require.NotNil(t, first.LastChecked)
	assert.Equal(t, checked, *first.LastChecked)

	second := records[1]
	assert.False(t, second.CurrentPrice.Valid)
	assert.Nil(t, second.LastChecked)
	assert.Empty(t, second.PriceHistory)
}

func TestRecordPriceWithDrop(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTrackingRepository(db)

	checkedAt := time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)
	update := models.PriceUpdate{
		CurrentPrice: decimal.RequireFromString("39.99"),
		Point:        models.PricePoint{Date: checkedAt, Price: decimal.RequireFromString("39.99"), Available: true},
		CheckedAt:    checkedAt,
		DropDetected: true,
		DropAmount:   decimal.RequireFromString("10.00"),
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE price_tracking")).
		WithArgs("t1", update.CurrentPrice,
			`[{"date":"2026-10-18T06:00:00Z","price":39.99,"available":true}]`,
			checkedAt, true, decimal.NewNullDecimal(update.DropAmount), sql.NullTime{Time: checkedAt, Valid: true}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordPrice(context.Background(), "t1", update))
}

func TestRecordPriceWithoutDropClearsDropColumns(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTrackingRepository(db)

	checkedAt := time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)
	update := models.PriceUpdate{
		CurrentPrice: decimal.RequireFromString("49.99"),
		Point:        models.PricePoint{Date: checkedAt, Price: decimal.RequireFromString("49.99")},
		CheckedAt:    checkedAt,
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE price_tracking")).
		WithArgs("t1", sqlmock.AnyArg(), sqlmock.AnyArg(), checkedAt, false, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordPrice(context.Background(), "t1", update))
}

func TestMarkCheckedMissingRecord(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTrackingRepository(db)

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE price_tracking SET last_checked = $2 WHERE id = $1")).
		WithArgs("gone", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkChecked(context.Background(), "gone", at)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateTrackingRecord(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTrackingRepository(db)

	now := time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)
	record := &models.TrackingRecord{
		PurchaseID:    "p1",
		ProductURL:    "https://www.target.com/p/1",
		ProductName:   "Lamp",
		OriginalPrice: decimal.RequireFromString("25.00"),
	}
	first := models.PricePoint{Date: now, Price: decimal.RequireFromString("22.50"), Available: true}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO price_tracking")).
		WithArgs("p1", "https://www.target.com/p/1", "Lamp", record.OriginalPrice, first.Price,
			`[{"date":"2026-10-18T06:00:00Z","price":22.5,"available":true}]`, now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("t9", now))

	created, err := repo.Create(context.Background(), record, first)
	require.NoError(t, err)
	assert.Equal(t, "t9", created.ID)
	assert.True(t, created.TrackingActive)
	assert.Equal(t, "22.5", created.LowestPrice.Decimal.String())
	assert.Len(t, created.PriceHistory, 1)
	assert.Empty(t, record.ID)
}

func TestCreateTrackingRecordMapsConstraintErrors(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"23505", apperrors.ErrConflict},
		{"23503", apperrors.ErrNotFound},
		{"22P02", apperrors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewTrackingRepository(db)

			mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO price_tracking")).
				WillReturnError(&pq.Error{Code: pq.ErrorCode(tt.code)})

			_, err := repo.Create(context.Background(), &models.TrackingRecord{PurchaseID: "p1"},
				models.PricePoint{Date: time.Now(), Price: decimal.NewFromInt(1)})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDeactivate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTrackingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET tracking_active = false")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Deactivate(context.Background(), "t1"))
}

func TestDeactivateMalformedID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTrackingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET tracking_active = false")).
		WithArgs("nope").
		WillReturnError(&pq.Error{Code: "22P02"})

	assert.ErrorIs(t, repo.Deactivate(context.Background(), "nope"), apperrors.ErrValidation)
}
