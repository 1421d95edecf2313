package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"

	"fairval/apperrors"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerSecond float64 // sustained requests per client IP
	Burst     int
}

// RateLimitMiddleware limits requests per client IP.
func RateLimitMiddleware(config RateLimitConfig) func(http.Handler) http.Handler {
	lmt := tollbooth.NewLimiter(config.PerSecond, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Hour,
	})
	if config.Burst > 0 {
		lmt.SetBurst(config.Burst)
	}
	lmt.SetMessageContentType("application/json")
	lmt.SetMessage(errorBody(apperrors.ErrRateLimited))

	return func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(lmt, next)
	}
}

// BearerTokenMiddleware rejects requests whose Authorization header does not
// carry token. An empty token rejects everything.
func BearerTokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				log.Printf("⚠️  Rejected %s %s: no token configured", r.Method, r.URL.Path)
				writeError(w, fmt.Errorf("%w: endpoint token %w", apperrors.ErrUnauthorized, apperrors.ErrConfig))
				return
			}

			presented, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeError(w, apperrors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")), true
}

// MaxBodyMiddleware caps request bodies at limit bytes.
func MaxBodyMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs API requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if r.URL.Path == "/health" {
			return
		}
		log.Printf("API Request: %s %s -> %d (%v)", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func errorBody(err error) string {
	body, _ := json.Marshal(map[string]string{
		"error":    apperrors.UserMessage(err),
		"category": string(apperrors.Categorize(err)),
	})
	return string(body)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatus(err))
	fmt.Fprint(w, errorBody(err))
}
