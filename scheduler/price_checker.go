package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"fairval/apperrors"
	"fairval/models"
)

// ErrRunInProgress is returned when a batch run is requested while another
// one is still going.
var ErrRunInProgress = fmt.Errorf("price check batch already running: %w", apperrors.ErrConflict)

// TrackingStore is the slice of the tracking repository the batch uses.
type TrackingStore interface {
	ListDue(ctx context.Context, staleBefore time.Time, limit int) ([]models.TrackingRecord, error)
	RecordPrice(ctx context.Context, id string, update models.PriceUpdate) error
	MarkChecked(ctx context.Context, id string, at time.Time) error
}

// NotificationStore queues user notifications.
type NotificationStore interface {
	Create(ctx context.Context, n models.Notification) error
}

// ProductPriceChecker runs one live price check.
type ProductPriceChecker interface {
	CheckProductPrice(ctx context.Context, rawURL string) (*models.PriceCheckResult, error)
}

// BatchConfig tunes the batch checker.
type BatchConfig struct {
	Schedule      string        // cron spec with seconds
	BatchSize     int           // records per run
	Delay         time.Duration // pause between checks
	StaleAfter    time.Duration // records checked more recently are skipped
	DropThreshold float64       // fraction below the original price that counts as a drop
	RunOnStartup  bool
}

// PriceChecker re-checks tracked products on a schedule and records drops.
type PriceChecker struct {
	cron          *cron.Cron
	tracking      TrackingStore
	notifications NotificationStore
	checker       ProductPriceChecker
	cfg           BatchConfig

	running sync.Mutex
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewPriceChecker(tracking TrackingStore, notifications NotificationStore, checker ProductPriceChecker, cfg BatchConfig) *PriceChecker {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 0 */12 * * *"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 24 * time.Hour
	}
	if cfg.DropThreshold <= 0 {
		cfg.DropThreshold = 0.05
	}

	return &PriceChecker{
		cron:          cron.New(cron.WithSeconds()),
		tracking:      tracking,
		notifications: notifications,
		checker:       checker,
		cfg:           cfg,
		now:           time.Now,
		sleep:         sleepContext,
	}
}

// Start starts the scheduled price checking
func (pc *PriceChecker) Start() error {
	_, err := pc.cron.AddFunc(pc.cfg.Schedule, pc.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to schedule price checker: %w", err)
	}

	if pc.cfg.RunOnStartup {
		go pc.runScheduled()
	}

	pc.cron.Start()
	log.Printf("⏰ Price checker scheduled (%s)", pc.cfg.Schedule)
	return nil
}

// Stop stops the schedule and waits for a running batch to finish.
func (pc *PriceChecker) Stop() {
	<-pc.cron.Stop().Done()
}

func (pc *PriceChecker) runScheduled() {
	summary, err := pc.RunOnce(context.Background())
	if err != nil {
		log.Printf("❌ Scheduled price check failed: %v", err)
		return
	}
	log.Printf("✅ Scheduled price check done: %d checked, %d succeeded, %d drops (%s)",
		summary.Checked, summary.Succeeded, summary.PriceDrops, summary.Duration)
}

// RunOnce checks every due record sequentially. Per-record failures are
// reported in the summary; only a failure to load the batch is an error.
func (pc *PriceChecker) RunOnce(ctx context.Context) (*models.BatchSummary, error) {
	if !pc.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer pc.running.Unlock()

	started := pc.now()
	records, err := pc.tracking.ListDue(ctx, started.Add(-pc.cfg.StaleAfter), pc.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracking records: %w", err)
	}
	log.Printf("🔄 Checking prices for %d tracked products", len(records))

	summary := &models.BatchSummary{
		Results:   make([]models.BatchItemResult, 0, len(records)),
		StartedAt: started.UTC(),
	}

	for i, record := range records {
		if i > 0 && pc.cfg.Delay > 0 {
			if err := pc.sleep(ctx, pc.cfg.Delay); err != nil {
				log.Printf("⚠️  Price check batch interrupted: %v", err)
				break
			}
		}

		item := pc.checkRecord(ctx, record)
		summary.Results = append(summary.Results, item)
		summary.Checked++
		if item.Success {
			summary.Succeeded++
		}
		if item.PriceDrop {
			summary.PriceDrops++
		}
	}

	summary.Duration = pc.now().Sub(started).Round(time.Millisecond).String()
	return summary, nil
}

func (pc *PriceChecker) checkRecord(ctx context.Context, record models.TrackingRecord) models.BatchItemResult {
	item := models.BatchItemResult{ID: record.ID}

	result, err := pc.checker.CheckProductPrice(ctx, record.ProductURL)
	if err != nil {
		log.Printf("❌ Failed to check price for %s: %v", record.ID, err)
		item.Error = apperrors.UserMessage(err)
		return item
	}

	checkedAt := pc.now().UTC()
	if !result.HasKnownPrice() {
		log.Printf("⚠️  Price unknown for %s (%s), only updating last_checked", record.ProductName, record.ProductURL)
		if err := pc.tracking.MarkChecked(ctx, record.ID, checkedAt); err != nil {
			item.Error = err.Error()
			return item
		}
		item.Success = true
		return item
	}

	current := result.CurrentPrice
	update := models.PriceUpdate{
		CurrentPrice: current,
		Point:        models.PricePoint{Date: checkedAt, Price: current, Available: result.Available},
		CheckedAt:    checkedAt,
	}
	if IsPriceDrop(record.OriginalPrice, current, pc.cfg.DropThreshold) {
		update.DropDetected = true
		update.DropAmount = record.OriginalPrice.Sub(current)
	}

	if err := pc.tracking.RecordPrice(ctx, record.ID, update); err != nil {
		log.Printf("❌ Failed to record price for %s: %v", record.ID, err)
		item.Error = err.Error()
		return item
	}
	item.Success = true

	if update.DropDetected {
		item.PriceDrop = true
		log.Printf("📉 Price DROPPED for %s: $%s → $%s", record.ProductName,
			record.OriginalPrice.StringFixed(2), current.StringFixed(2))
		if err := pc.notifications.Create(ctx, PriceDropNotification(record, current)); err != nil {
			log.Printf("⚠️  Failed to create notification for %s: %v", record.ID, err)
		}
	}
	return item
}

// IsPriceDrop reports whether current is more than threshold below original.
func IsPriceDrop(original, current decimal.Decimal, threshold float64) bool {
	if !original.IsPositive() || !current.IsPositive() {
		return false
	}
	limit := original.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(threshold)))
	return current.LessThan(limit)
}

// PriceDropNotification builds the user-facing alert for a drop.
func PriceDropNotification(record models.TrackingRecord, current decimal.Decimal) models.Notification {
	return models.Notification{
		UserID:     record.UserID,
		PurchaseID: record.PurchaseID,
		Type:       models.NotificationPriceDrop,
		Title:      "Price Drop Detected!",
		Message: fmt.Sprintf("%s dropped from $%s to $%s. Save $%s!",
			record.ProductName,
			record.OriginalPrice.StringFixed(2),
			current.StringFixed(2),
			record.OriginalPrice.Sub(current).StringFixed(2)),
		Priority: models.PriorityHigh,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
