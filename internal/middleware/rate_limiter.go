package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterConfig sizes the two buckets: a wide one for the read
// surface and a tight one for the endpoints that take a token slot.
type RateLimiterConfig struct {
	Rate             rate.Limit
	Burst            int
	ReservationRate  rate.Limit
	ReservationBurst int
}

// RateLimiter throttles the API in two tiers. Slot reservation is the
// contended write of the system; availability polling and list reads
// must not be able to starve it, so reservations get their own bucket.
type RateLimiter struct {
	global  *rate.Limiter
	reserve *rate.Limiter
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.ReservationRate <= 0 {
		config.ReservationRate = config.Rate
		config.ReservationBurst = config.Burst
	}
	return &RateLimiter{
		global:  rate.NewLimiter(config.Rate, config.Burst),
		reserve: rate.NewLimiter(config.ReservationRate, config.ReservationBurst),
	}
}

// RateLimit applies the wide bucket to the whole API.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return limit(rl.global, "rate limit exceeded")
}

// ReservationRateLimit applies the tight bucket to the booking and
// reschedule endpoints, the ones that contend for the session row lock.
func (rl *RateLimiter) ReservationRateLimit() gin.HandlerFunc {
	return limit(rl.reserve, "too many booking attempts, retry shortly")
}

func limit(l *rate.Limiter, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Code:    http.StatusTooManyRequests,
				Message: message,
				TraceID: c.GetString(ContextRequestID),
			})
			return
		}
		c.Next()
	}
}
