package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every runtime setting of the service.
type Config struct {
	Host           string
	Port           string
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxRequestSize int64

	// Requests per second allowed per client IP.
	RateLimitPerSecond float64
	APIToken           string
	CronSecret         string

	DatabaseURL string

	AnthropicAPIKey  string
	ExtractionModel  string
	ReasoningModel   string
	AIRequestsPerMin int
	AIRequestTimeout time.Duration

	BrightDataCustomerID string
	BrightDataPassword   string
	BrightDataZone       string
	BrowserWSEndpoint    string
	NavigationTimeout    time.Duration
	FetchTimeout         time.Duration

	PriceCheckSchedule   string
	PriceCheckBatchSize  int
	PriceCheckDelay      time.Duration
	PriceCheckStaleAfter time.Duration
	PriceDropThreshold   float64
	RunCheckOnStartup    bool

	TaskWorkers   int
	TaskQueueSize int
}

// Load reads the configuration from the environment. Call godotenv.Load first
// when a .env file should be honored.
func Load() *Config {
	return &Config{
		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		RequestTimeout: getEnvDuration("API_REQUEST_TIMEOUT", 2*time.Minute),
		MaxRequestSize: getEnvInt64("API_MAX_REQUEST_SIZE", 10*1024*1024), // 10MB

		RateLimitPerSecond: getEnvFloat("API_RATE_LIMIT_PER_SECOND", 5),
		APIToken:           os.Getenv("API_TOKEN"),
		CronSecret:         os.Getenv("CRON_SECRET"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		ExtractionModel:  getEnv("AI_EXTRACTION_MODEL", "claude-3-5-haiku-20241022"),
		ReasoningModel:   getEnv("AI_REASONING_MODEL", "claude-3-5-sonnet-20241022"),
		AIRequestsPerMin: getEnvInt("AI_REQUESTS_PER_MINUTE", 50),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		BrightDataCustomerID: os.Getenv("BRIGHT_DATA_CUSTOMER_ID"),
		// Both spellings of the password variable are in use.
		BrightDataPassword: getEnv("BRIGHT_DATA_SBR_PASSWORD", os.Getenv("BRIGHT_DATA_SBP_PASSWORD")),
		BrightDataZone:     getEnv("BRIGHT_DATA_ZONE", "scraping_browser1"),
		BrowserWSEndpoint:  os.Getenv("BROWSER_WS_ENDPOINT"),
		NavigationTimeout:  getEnvDuration("NAVIGATION_TIMEOUT", 30*time.Second),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 60*time.Second),

		PriceCheckSchedule:   getEnv("PRICE_CHECK_SCHEDULE", "0 0 */12 * * *"),
		PriceCheckBatchSize:  getEnvInt("PRICE_CHECK_BATCH_SIZE", 50),
		PriceCheckDelay:      getEnvDuration("PRICE_CHECK_DELAY", 2*time.Second),
		PriceCheckStaleAfter: getEnvDuration("PRICE_CHECK_STALE_AFTER", 24*time.Hour),
		PriceDropThreshold:   getEnvFloat("PRICE_DROP_THRESHOLD", 0.05),
		RunCheckOnStartup:    getEnvBool("PRICE_CHECK_ON_STARTUP", false),

		TaskWorkers:   getEnvInt("TASK_WORKERS", 3),
		TaskQueueSize: getEnvInt("TASK_QUEUE_SIZE", 100),
	}
}

// BrowserEndpoint returns the CDP websocket endpoint of the remote scraping
// browser, or "" when no browser is configured.
func (c *Config) BrowserEndpoint() string {
	if c.BrowserWSEndpoint != "" {
		return c.BrowserWSEndpoint
	}
	if c.BrightDataCustomerID == "" || c.BrightDataPassword == "" {
		return ""
	}
	return fmt.Sprintf("wss://brd-customer-%s-zone-%s:%s@brd.superproxy.io:9222",
		c.BrightDataCustomerID, c.BrightDataZone, c.BrightDataPassword)
}

// Validate reports settings the service cannot run with.
func (c *Config) Validate() error {
	if c.PriceDropThreshold <= 0 || c.PriceDropThreshold >= 1 {
		return fmt.Errorf("PRICE_DROP_THRESHOLD must be in (0, 1), got %v", c.PriceDropThreshold)
	}
	if c.PriceCheckBatchSize <= 0 {
		return fmt.Errorf("PRICE_CHECK_BATCH_SIZE must be positive, got %d", c.PriceCheckBatchSize)
	}
	if c.TaskWorkers <= 0 {
		return fmt.Errorf("TASK_WORKERS must be positive, got %d", c.TaskWorkers)
	}
	if c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("API_RATE_LIMIT_PER_SECOND must be positive, got %v", c.RateLimitPerSecond)
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
