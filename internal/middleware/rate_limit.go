package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/BradenHooton/csm/internal/metrics"
	pkghttp "github.com/BradenHooton/csm/pkg/http"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Name labels rejections in the rate_limit_rejected_total metric
	Name              string
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// LoginRateLimit returns the limiter settings for the login endpoint
func LoginRateLimit(requestsPerMinute int, ipConfig *pkghttp.IPConfig) RateLimitConfig {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 10
	}
	return RateLimitConfig{
		Name:              "login",
		RequestsPerMinute: requestsPerMinute,
		IPConfig:          ipConfig,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP.
// Forwarding headers only count when the peer is a trusted proxy.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RateLimitRejected.WithLabelValues(config.Name).Inc()
			pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
		}),
	)
}
