package middleware

import (
	"fmt"

	"golang.org/x/time/rate"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// RateLimit holds each request until limiter grants a token. Waiting ends
// early when the request context is done, which fails the request.
func RateLimit(c *courier.Client, limiter *rate.Limiter) int {
	return c.Interceptors.Request.Use(func(cfg *courier.Config) (*courier.Config, error) {
		if err := limiter.Wait(cfg.Context()); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		return cfg, nil
	}, nil)
}

// NewLimiter allows perSecond requests per second with the given burst.
// A burst below one is raised to one.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
