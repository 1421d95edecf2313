package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"fairval/ai"
	"fairval/config"
	"fairval/database"
	"fairval/handlers"
	"fairval/middleware"
	"fairval/policy"
	"fairval/receipt"
	"fairval/refund"
	"fairval/repository"
	"fairval/scheduler"
	"fairval/scraper"
)

const version = "1.0.0"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// AI model shared by every extractor
	var model ai.Model
	if client, err := ai.NewClient(ai.ClientConfig{
		APIKey:            cfg.AnthropicAPIKey,
		RequestsPerMinute: cfg.AIRequestsPerMin,
		Timeout:           cfg.AIRequestTimeout,
	}); err != nil {
		log.Printf("⚠️  AI features disabled: %v", err)
	} else {
		model = client
	}

	// Price checking strategies: remote browser first, then HTML + AI
	fetcher := scraper.NewHTMLFetcher(cfg.FetchTimeout)
	session := scraper.NewBrowserSession(cfg.BrowserEndpoint())
	defer session.Close()

	var strategies []scraper.PriceStrategy
	if session.Configured() {
		strategies = append(strategies, scraper.NewBrowserScraper(session, cfg.NavigationTimeout))
	} else {
		log.Println("⚠️  Remote browser not configured, using HTML extraction only")
	}
	strategies = append(strategies, scraper.NewAIScraper(fetcher, model, cfg.ExtractionModel))
	priceChecker := scraper.NewPriceChecker(strategies...)

	taskManager := scheduler.NewTaskManager(priceChecker, scheduler.TaskManagerConfig{
		Workers:     cfg.TaskWorkers,
		QueueSize:   cfg.TaskQueueSize,
		TaskTimeout: cfg.RequestTimeout,
	})
	defer taskManager.Stop()

	deps := handlers.Deps{
		Prices:   priceChecker,
		Tasks:    taskManager,
		Policies: policy.NewScraper(fetcher, model, cfg.ReasoningModel),
	}
	wireAIServices(&deps, model, cfg)

	// Database backed features
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Printf("⚠️  Price tracking disabled: %v", err)
	} else {
		defer db.Close()
		batch := startPriceChecker(cfg, db, priceChecker)
		defer batch.Stop()

		deps.Tracking = repository.NewTrackingRepository(db)
		deps.Batch = batch
	}

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		PerSecond: cfg.RateLimitPerSecond,
		Burst:     int(cfg.RateLimitPerSecond * 2),
	}))
	r.Use(middleware.MaxBodyMiddleware(cfg.MaxRequestSize))

	handlers.NewHandlers(deps, version).Register(r, handlers.RouteOptions{
		APIToken:   cfg.APIToken,
		CronSecret: cfg.CronSecret,
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
	}

	go func() {
		log.Printf("🌐 Server starting on %s", server.Addr)
		log.Printf("   GET  /health - Health check")
		log.Printf("   POST /api/v1/price-check - Check a product price")
		log.Printf("   POST /api/v1/price-check/async - Queue a price check")
		log.Printf("   POST /api/v1/track-price - Start tracking a purchase")
		log.Printf("   POST /api/v1/receipts/extract - Extract receipt data")
		log.Printf("   POST /api/v1/refunds/generate - Draft a refund email")
		log.Printf("   POST /api/v1/returns/analyze - Check return eligibility")
		log.Printf("   POST /api/v1/return-policy - Scrape a return policy")
		log.Printf("   POST /api/v1/products/suggest-url - Suggest product pages")
		log.Printf("   GET  /api/cron/check-prices - Run tracked price checks")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Server shutdown failed: %v", err)
	}
}

func startPriceChecker(cfg *config.Config, db *sql.DB, checker scheduler.ProductPriceChecker) *scheduler.PriceChecker {
	batch := scheduler.NewPriceChecker(
		repository.NewTrackingRepository(db),
		repository.NewNotificationRepository(db),
		checker,
		scheduler.BatchConfig{
			Schedule:      cfg.PriceCheckSchedule,
			BatchSize:     cfg.PriceCheckBatchSize,
			Delay:         cfg.PriceCheckDelay,
			StaleAfter:    cfg.PriceCheckStaleAfter,
			DropThreshold: cfg.PriceDropThreshold,
			RunOnStartup:  cfg.RunCheckOnStartup,
		},
	)
	if err := batch.Start(); err != nil {
		log.Fatalf("Failed to start price checker: %v", err)
	}
	return batch
}

// wireAIServices adds the model-only features. Receipts, refunds and url
// suggestions need the reasoning model; without a model they stay nil.
func wireAIServices(deps *handlers.Deps, model ai.Model, cfg *config.Config) {
	if model == nil {
		return
	}
	deps.Receipts = receipt.NewExtractor(model, cfg.ReasoningModel)
	deps.Refunds = refund.NewService(model, cfg.ReasoningModel)
	deps.Suggestions = scraper.NewURLSuggester(model, cfg.ReasoningModel)
}
