package middleware

import (
	"net/http"
	"sync"
	"time"

	"slotline/pkg/logger"
)

type TenantExtractor func(r *http.Request) string

// TenantRateLimiter keeps a sliding window of request timestamps per tenant.
type TenantRateLimiter struct {
	mu        sync.RWMutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	extractor TenantExtractor
	log       *logger.Logger
	stopCh    chan struct{}
}

func NewTenantRateLimiter(limit int, window time.Duration, extractor TenantExtractor, log *logger.Logger) *TenantRateLimiter {
	limiter := &TenantRateLimiter{
		requests:  make(map[string][]time.Time),
		limit:     limit,
		window:    window,
		extractor: extractor,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *TenantRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for tenant, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, tenant)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *TenantRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *TenantRateLimiter) Allow(tenant string) bool {
	if tenant == "" {
		return true
	}

	now := time.Now()

	rl.mu.RLock()
	timestamps := rl.requests[tenant]
	rl.mu.RUnlock()

	validTimestamps := make([]time.Time, 0)
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			validTimestamps = append(validTimestamps, ts)
		}
	}

	if len(validTimestamps) >= rl.limit {
		return false
	}

	validTimestamps = append(validTimestamps, now)

	rl.mu.Lock()
	rl.requests[tenant] = validTimestamps
	rl.mu.Unlock()

	return true
}

func TenantRateLimit(limiter *TenantRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := extractTenantID(r, limiter.extractor)

			if tenant == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(tenant) {
				rejectRateLimited(w, limiter.log, r, tenant)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractTenantID(r *http.Request, extractor TenantExtractor) string {
	if extractor == nil {
		return r.Header.Get("X-Tenant-ID")
	}
	return extractor(r)
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, tenant string) {
	requestID := ""
	if rid := r.Context().Value(RequestIDKey); rid != nil {
		requestID = rid.(string)
	}

	log.Warn("Rate limit exceeded",
		"request_id", requestID,
		"tenant_id", tenant,
		"path", r.URL.Path,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}

func DefaultTenantExtractor(r *http.Request) string {
	return r.Header.Get("X-Tenant-ID")
}
