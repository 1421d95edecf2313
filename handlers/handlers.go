package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"fairval/apperrors"
	"fairval/middleware"
	"fairval/models"
	"fairval/refund"
	"fairval/scheduler"
	"fairval/validation"
)

// PriceService runs live price checks.
type PriceService interface {
	CheckProductPrice(ctx context.Context, rawURL string) (*models.PriceCheckResult, error)
}

// TaskQueue runs price checks in the background.
type TaskQueue interface {
	SubmitTask(url string) *models.PriceCheckTask
	GetTask(taskID string) (*models.PriceCheckTask, bool)
	GetStats() scheduler.TaskStats
}

// TrackingStore persists price watches.
type TrackingStore interface {
	Create(ctx context.Context, record *models.TrackingRecord, first models.PricePoint) (*models.TrackingRecord, error)
	ListByUser(ctx context.Context, userID string) ([]models.TrackingRecord, error)
	Deactivate(ctx context.Context, id string) error
}

// ReceiptExtractor turns receipt images or text into structured data.
type ReceiptExtractor interface {
	ExtractFromImage(ctx context.Context, image, mediaType string) (*models.ReceiptData, error)
	ExtractReceipt(ctx context.Context, text string) (*models.ReceiptData, error)
}

// RefundAssistant drafts refund emails and judges return eligibility.
type RefundAssistant interface {
	GenerateRefundEmail(ctx context.Context, req models.RefundRequest) (*refund.GeneratedEmail, error)
	AnalyzeReturnEligibility(ctx context.Context, purchase models.PurchaseSummary, policy string) (*models.ReturnAnalysis, error)
}

// PolicyScraper finds and summarizes merchant return policies.
type PolicyScraper interface {
	ScrapeReturnPolicy(ctx context.Context, merchantName, merchantDomain string) (*models.ReturnPolicy, error)
}

// URLSuggester finds product pages for a purchase on supported retailers.
type URLSuggester interface {
	SuggestProductURLs(ctx context.Context, productName, merchantName string) (*models.URLSuggestions, error)
}

// BatchRunner runs one pass of the scheduled price checker.
type BatchRunner interface {
	RunOnce(ctx context.Context) (*models.BatchSummary, error)
}

// Deps are the services behind the HTTP API. Nil services answer with a
// "not configured" error.
type Deps struct {
	Prices      PriceService
	Tasks       TaskQueue
	Tracking    TrackingStore
	Receipts    ReceiptExtractor
	Refunds     RefundAssistant
	Policies    PolicyScraper
	Suggestions URLSuggester
	Batch       BatchRunner
}

// RouteOptions protect the API surfaces.
type RouteOptions struct {
	APIToken   string // required on /api/v1 when set
	CronSecret string // always required on /api/cron
}

type Handlers struct {
	deps    Deps
	version string
	now     func() time.Time
}

func NewHandlers(deps Deps, version string) *Handlers {
	return &Handlers{deps: deps, version: version, now: time.Now}
}

// Register mounts every route on r.
func (h *Handlers) Register(r *mux.Router, opts RouteOptions) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	if opts.APIToken != "" {
		apiV1.Use(middleware.BearerTokenMiddleware(opts.APIToken))
	}

	apiV1.HandleFunc("/price-check", h.CheckPrice).Methods(http.MethodPost)
	apiV1.HandleFunc("/price-check/async", h.CheckPriceAsync).Methods(http.MethodPost)
	apiV1.HandleFunc("/tasks/stats", h.GetTaskStats).Methods(http.MethodGet)
	apiV1.HandleFunc("/tasks/{taskId}", h.GetTaskStatus).Methods(http.MethodGet)

	apiV1.HandleFunc("/track-price", h.TrackPrice).Methods(http.MethodPost)
	apiV1.HandleFunc("/track-price", h.ListTrackedPrices).Methods(http.MethodGet)
	apiV1.HandleFunc("/track-price/{id}", h.StopTracking).Methods(http.MethodDelete)

	apiV1.HandleFunc("/receipts/extract", h.ExtractReceipt).Methods(http.MethodPost)
	apiV1.HandleFunc("/refunds/generate", h.GenerateRefund).Methods(http.MethodPost)
	apiV1.HandleFunc("/returns/analyze", h.AnalyzeReturn).Methods(http.MethodPost)
	apiV1.HandleFunc("/return-policy", h.ScrapeReturnPolicy).Methods(http.MethodPost)
	apiV1.HandleFunc("/products/suggest-url", h.SuggestProductURL).Methods(http.MethodPost)

	cron := r.PathPrefix("/api/cron").Subrouter()
	cron.Use(middleware.BearerTokenMiddleware(opts.CronSecret))
	cron.HandleFunc("/check-prices", h.RunPriceChecks).Methods(http.MethodGet, http.MethodPost)
}

// HealthCheck returns a simple health check response
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.now().UTC(),
		"service":   "fairval",
		"version":   h.version,
	}
	writeJSON(w, http.StatusOK, response)
}

// CheckPrice checks a product price synchronously.
func (h *Handlers) CheckPrice(w http.ResponseWriter, r *http.Request) {
	if h.deps.Prices == nil {
		writeError(w, notConfigured("price checking"))
		return
	}

	var req models.PriceCheckRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.deps.Prices.CheckProductPrice(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CheckPriceAsync queues a price check and returns the task immediately.
func (h *Handlers) CheckPriceAsync(w http.ResponseWriter, r *http.Request) {
	if h.deps.Tasks == nil {
		writeError(w, notConfigured("async price checking"))
		return
	}

	var req models.PriceCheckRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := validation.ValidateProductURL(req.URL); err != nil {
		writeError(w, err)
		return
	}

	task := h.deps.Tasks.SubmitTask(req.URL)
	if task.Status == models.TaskStatusFailed {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":    task.Error,
			"category": apperrors.CategoryUnavailable,
			"task":     task,
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"task_id":    task.ID,
		"status":     task.Status,
		"status_url": "/api/v1/tasks/" + task.ID,
		"task":       task,
	})
}

// GetTaskStatus returns the current state of an async task.
func (h *Handlers) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	if h.deps.Tasks == nil {
		writeError(w, notConfigured("async price checking"))
		return
	}

	taskID := mux.Vars(r)["taskId"]
	task, ok := h.deps.Tasks.GetTask(taskID)
	if !ok {
		writeError(w, fmt.Errorf("task %s: %w", taskID, apperrors.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// GetTaskStats returns worker pool statistics.
func (h *Handlers) GetTaskStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Tasks == nil {
		writeError(w, notConfigured("async price checking"))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Tasks.GetStats())
}

// TrackPrice checks the current price and starts watching the product.
func (h *Handlers) TrackPrice(w http.ResponseWriter, r *http.Request) {
	if h.deps.Prices == nil || h.deps.Tracking == nil {
		writeError(w, notConfigured("price tracking"))
		return
	}

	var req models.TrackPriceRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.deps.Prices.CheckProductPrice(r.Context(), req.ProductURL)
	if err != nil {
		writeError(w, err)
		return
	}
	if !result.HasKnownPrice() {
		writeError(w, fmt.Errorf("%w: current price of %s is unknown", apperrors.ErrExtraction, req.ProductURL))
		return
	}

	name := strings.TrimSpace(req.ProductName)
	if name == "" {
		name = result.Title
	}

	record := &models.TrackingRecord{
		PurchaseID:    req.PurchaseID,
		ProductURL:    result.URL,
		ProductName:   name,
		OriginalPrice: decimal.NewFromFloat(req.OriginalPrice).Round(2),
	}
	first := models.PricePoint{
		Date:      result.Timestamp,
		Price:     result.CurrentPrice,
		Available: result.Available,
	}

	created, err := h.deps.Tracking.Create(r.Context(), record, first)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("📌 Tracking %s for purchase %s at $%s", created.ProductName, created.PurchaseID, result.CurrentPrice.StringFixed(2))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"tracking":    created,
		"price_check": result,
	})
}

// ListTrackedPrices returns a user's active price watches.
func (h *Handlers) ListTrackedPrices(w http.ResponseWriter, r *http.Request) {
	if h.deps.Tracking == nil {
		writeError(w, notConfigured("price tracking"))
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if err := validation.Var("user_id", userID, "required,uuid"); err != nil {
		writeError(w, err)
		return
	}

	records, err := h.deps.Tracking.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []models.TrackingRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tracking": records,
		"count":    len(records),
	})
}

// StopTracking deactivates a price watch.
func (h *Handlers) StopTracking(w http.ResponseWriter, r *http.Request) {
	if h.deps.Tracking == nil {
		writeError(w, notConfigured("price tracking"))
		return
	}

	id := mux.Vars(r)["id"]
	if err := validation.Var("id", id, "uuid"); err != nil {
		writeError(w, err)
		return
	}

	if err := h.deps.Tracking.Deactivate(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExtractReceipt structures a receipt from an image or from text.
func (h *Handlers) ExtractReceipt(w http.ResponseWriter, r *http.Request) {
	if h.deps.Receipts == nil {
		writeError(w, notConfigured("receipt extraction"))
		return
	}

	var req models.ExtractReceiptRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var (
		receipt *models.ReceiptData
		err     error
	)
	if req.Image != "" {
		receipt, err = h.deps.Receipts.ExtractFromImage(r.Context(), req.Image, req.MediaType)
	} else {
		receipt, err = h.deps.Receipts.ExtractReceipt(r.Context(), req.Text)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// GenerateRefund drafts a refund request email.
func (h *Handlers) GenerateRefund(w http.ResponseWriter, r *http.Request) {
	if h.deps.Refunds == nil {
		writeError(w, notConfigured("refund generation"))
		return
	}

	var req models.RefundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	email, err := h.deps.Refunds.GenerateRefundEmail(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, email)
}

// AnalyzeReturn judges whether a purchase can still be returned.
func (h *Handlers) AnalyzeReturn(w http.ResponseWriter, r *http.Request) {
	if h.deps.Refunds == nil {
		writeError(w, notConfigured("return analysis"))
		return
	}

	var req models.AnalyzeReturnRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	analysis, err := h.deps.Refunds.AnalyzeReturnEligibility(r.Context(), req.Purchase, req.PolicyText)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// ScrapeReturnPolicy finds and summarizes a merchant's return policy.
func (h *Handlers) ScrapeReturnPolicy(w http.ResponseWriter, r *http.Request) {
	if h.deps.Policies == nil {
		writeError(w, notConfigured("return policy scraping"))
		return
	}

	var req models.ReturnPolicyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	policy, err := h.deps.Policies.ScrapeReturnPolicy(r.Context(), req.MerchantName, req.MerchantDomain)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// SuggestProductURL suggests up to three product pages for a purchase.
func (h *Handlers) SuggestProductURL(w http.ResponseWriter, r *http.Request) {
	if h.deps.Suggestions == nil {
		writeError(w, notConfigured("product url suggestion"))
		return
	}

	var req models.SuggestURLRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.deps.Suggestions.SuggestProductURLs(r.Context(), req.ProductName, req.MerchantName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"suggestions": result.Suggestions,
		"query":       result.Query,
	})
}

// RunPriceChecks runs one batch of tracked price checks.
func (h *Handlers) RunPriceChecks(w http.ResponseWriter, r *http.Request) {
	if h.deps.Batch == nil {
		writeError(w, notConfigured("batch price checking"))
		return
	}

	log.Println("🔄 Price check batch triggered via cron endpoint")
	summary, err := h.deps.Batch.RunOnce(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func notConfigured(feature string) error {
	return fmt.Errorf("%s is %w", feature, apperrors.ErrConfig)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("%w: request body is required", apperrors.ErrValidation)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", apperrors.ErrValidation)
		}
		return fmt.Errorf("%w: invalid request body: %v", apperrors.ErrValidation, err)
	}
	return nil
}

func decodeAndValidate(r *http.Request, v interface{}) error {
	if err := decodeJSON(r, v); err != nil {
		return err
	}
	return validation.Struct(v)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

// writeError answers with the normalized message for err. The raw error is
// only logged.
func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("❌ Request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{
		"error":    apperrors.UserMessage(err),
		"category": string(apperrors.Categorize(err)),
	})
}
