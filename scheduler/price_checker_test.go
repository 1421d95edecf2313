package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairval/apperrors"
	"fairval/models"
)

type fakeTracking struct {
	mu       sync.Mutex
	due      []models.TrackingRecord
	listErr  error
	updates  map[string]models.PriceUpdate
	checked  []string
	limit    int
	stale    time.Time
	entered  chan struct{}
	blockCh  chan struct{}
	recordFn func(id string) error
}

func (f *fakeTracking) ListDue(_ context.Context, staleBefore time.Time, limit int) ([]models.TrackingRecord, error) {
	if f.blockCh != nil {
		close(f.entered)
		<-f.blockCh
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stale, f.limit = staleBefore, limit
	return f.due, f.listErr
}

func (f *fakeTracking) RecordPrice(_ context.Context, id string, update models.PriceUpdate) error {
	if f.recordFn != nil {
		if err := f.recordFn(id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = map[string]models.PriceUpdate{}
	}
	f.updates[id] = update
	return nil
}

func (f *fakeTracking) MarkChecked(_ context.Context, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, id)
	return nil
}

type fakeNotifications struct {
	created []models.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n models.Notification) error {
	f.created = append(f.created, n)
	return nil
}

type priceByURL map[string]string

func (p priceByURL) CheckProductPrice(_ context.Context, rawURL string) (*models.PriceCheckResult, error) {
	price, ok := p[rawURL]
	if !ok {
		return nil, errors.New("page unavailable")
	}
	return &models.PriceCheckResult{
		URL:          rawURL,
		CurrentPrice: decimal.RequireFromString(price),
		Currency:     "USD",
		Available:    true,
	}, nil
}

func record(id, url, original string) models.TrackingRecord {
	return models.TrackingRecord{
		ID:            id,
		PurchaseID:    "purchase-" + id,
		UserID:        "user-1",
		ProductURL:    url,
		ProductName:   "Widget " + id,
		OriginalPrice: decimal.RequireFromString(original),
	}
}

func newTestChecker(tracking *fakeTracking, notes *fakeNotifications, prices priceByURL) *PriceChecker {
	pc := NewPriceChecker(tracking, notes, prices, BatchConfig{Delay: 2 * time.Second})
	pc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	pc.sleep = func(context.Context, time.Duration) error { return nil }
	return pc
}

func TestIsPriceDrop(t *testing.T) {
	d := decimal.RequireFromString
	assert.True(t, IsPriceDrop(d("100"), d("94.99"), 0.05))
	assert.False(t, IsPriceDrop(d("100"), d("95"), 0.05))
	assert.False(t, IsPriceDrop(d("100"), d("99"), 0.05))
	assert.False(t, IsPriceDrop(d("100"), d("120"), 0.05))
	assert.False(t, IsPriceDrop(d("100"), d("0"), 0.05))
	assert.False(t, IsPriceDrop(d("0"), d("10"), 0.05))
}

func TestPriceDropNotification(t *testing.T) {
	n := PriceDropNotification(record("1", "https://shop.example/a", "100"), decimal.RequireFromString("80"))

	assert.Equal(t, "user-1", n.UserID)
	assert.Equal(t, "purchase-1", n.PurchaseID)
	assert.Equal(t, models.NotificationPriceDrop, n.Type)
	assert.Equal(t, "Price Drop Detected!", n.Title)
	assert.Equal(t, "Widget 1 dropped from $100.00 to $80.00. Save $20.00!", n.Message)
	assert.Equal(t, models.PriorityHigh, n.Priority)
}

func TestRunOnce(t *testing.T) {
	tracking := &fakeTracking{due: []models.TrackingRecord{
		record("drop", "https://shop.example/drop", "100"),
		record("flat", "https://shop.example/flat", "50"),
		record("unknown", "https://shop.example/unknown", "20"),
		record("broken", "https://shop.example/broken", "10"),
	}}
	notes := &fakeNotifications{}
	pc := newTestChecker(tracking, notes, priceByURL{
		"https://shop.example/drop":    "79.99",
		"https://shop.example/flat":    "49",
		"https://shop.example/unknown": "0",
	})

	var slept int
	pc.sleep = func(_ context.Context, d time.Duration) error {
		assert.Equal(t, 2*time.Second, d)
		slept++
		return nil
	}

	summary, err := pc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 50, tracking.limit)
	assert.Equal(t, pc.now().Add(-24*time.Hour), tracking.stale)
	assert.Equal(t, 3, slept)

	assert.Equal(t, 4, summary.Checked)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.PriceDrops)
	require.Len(t, summary.Results, 4)
	assert.True(t, summary.Results[0].PriceDrop)
	assert.False(t, summary.Results[1].PriceDrop)
	assert.True(t, summary.Results[2].Success)
	assert.False(t, summary.Results[3].Success)
	assert.NotEmpty(t, summary.Results[3].Error)

	drop := tracking.updates["drop"]
	assert.True(t, drop.DropDetected)
	assert.Equal(t, "20.01", drop.DropAmount.String())
	assert.True(t, drop.Point.Price.Equal(decimal.RequireFromString("79.99")))

	flat := tracking.updates["flat"]
	assert.False(t, flat.DropDetected)

	_, recorded := tracking.updates["unknown"]
	assert.False(t, recorded)
	assert.Equal(t, []string{"unknown"}, tracking.checked)

	require.Len(t, notes.created, 1)
	assert.Equal(t, "purchase-drop", notes.created[0].PurchaseID)
}

func TestRunOnceRecordFailureIsReported(t *testing.T) {
	tracking := &fakeTracking{
		due:      []models.TrackingRecord{record("a", "https://shop.example/a", "100")},
		recordFn: func(string) error { return errors.New("connection reset") },
	}
	notes := &fakeNotifications{}
	pc := newTestChecker(tracking, notes, priceByURL{"https://shop.example/a": "50"})

	summary, err := pc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, 0, summary.PriceDrops)
	assert.Empty(t, notes.created)
}

func TestRunOnceListError(t *testing.T) {
	pc := newTestChecker(&fakeTracking{listErr: errors.New("db down")}, &fakeNotifications{}, priceByURL{})

	_, err := pc.RunOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestRunOnceRefusesOverlap(t *testing.T) {
	tracking := &fakeTracking{entered: make(chan struct{}), blockCh: make(chan struct{})}
	pc := newTestChecker(tracking, &fakeNotifications{}, priceByURL{})

	done := make(chan error, 1)
	go func() {
		_, err := pc.RunOnce(context.Background())
		done <- err
	}()

	<-tracking.entered
	_, err := pc.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.ErrorIs(t, ErrRunInProgress, apperrors.ErrConflict)

	close(tracking.blockCh)
	require.NoError(t, <-done)
}

func TestRunOnceStopsWhenContextEnds(t *testing.T) {
	tracking := &fakeTracking{due: []models.TrackingRecord{
		record("a", "https://shop.example/a", "10"),
		record("b", "https://shop.example/b", "10"),
	}}
	pc := newTestChecker(tracking, &fakeNotifications{}, priceByURL{
		"https://shop.example/a": "10",
		"https://shop.example/b": "10",
	})
	pc.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	summary, err := pc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	pc := NewPriceChecker(&fakeTracking{}, &fakeNotifications{}, priceByURL{}, BatchConfig{Schedule: "not a schedule"})
	assert.Error(t, pc.Start())
}

func TestStartAndStop(t *testing.T) {
	pc := NewPriceChecker(&fakeTracking{}, &fakeNotifications{}, priceByURL{}, BatchConfig{})
	require.NoError(t, pc.Start())
	pc.Stop()
}
