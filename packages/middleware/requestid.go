package middleware

import (
	"github.com/google/uuid"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
	"github.com/abdul-hamid-achik/courier/packages/interceptor"
)

// DefaultRequestIDHeader is the header RequestID sets when none is given.
const DefaultRequestIDHeader = "X-Request-Id"

// RequestID tags every request with a random UUID under header, keeping any
// id the caller already set.
func RequestID(c *courier.Client, header string) int {
	if header == "" {
		header = DefaultRequestIDHeader
	}
	return c.Interceptors.Request.Use(func(cfg *courier.Config) (*courier.Config, error) {
		if cfg.Headers == nil {
			cfg.Headers = courier.Header{}
		}
		if cfg.Headers.Get(header) == "" {
			cfg.Headers = cfg.Headers.Clone()
			cfg.Headers.Set(header, uuid.NewString())
		}
		return cfg, nil
	}, nil, interceptor.Options[*courier.Config]{Synchronous: true})
}
