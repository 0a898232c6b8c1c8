package middleware

import (
	"context"
	"log/slog"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
	"github.com/abdul-hamid-achik/courier/packages/interceptor"
)

// Logging logs each outgoing request at debug level and each settled
// response at info level. Failures are logged at warn level and passed on
// unchanged. It returns the request and response interceptor ids.
func Logging(c *courier.Client, logger *slog.Logger) (int, int) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "courier")

	reqID := c.Interceptors.Request.Use(func(cfg *courier.Config) (*courier.Config, error) {
		logger.LogAttrs(cfg.Context(), slog.LevelDebug, "request",
			slog.String("method", cfg.Method),
			slog.String("url", courier.BuildFullPath(cfg.BaseURL, cfg.URL)),
		)
		return cfg, nil
	}, nil, interceptor.Options[*courier.Config]{Synchronous: true})

	respID := c.Interceptors.Response.Use(func(resp *courier.Response) (*courier.Response, error) {
		ctx := context.Background()
		attrs := []slog.Attr{
			slog.Int("status", resp.Status),
			slog.Duration("duration", resp.Duration),
		}
		if resp.Config != nil {
			ctx = resp.Config.Context()
			attrs = append(attrs,
				slog.String("method", resp.Config.Method),
				slog.String("url", courier.BuildFullPath(resp.Config.BaseURL, resp.Config.URL)),
			)
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "response", attrs...)
		return resp, nil
	}, func(err error) (*courier.Response, error) {
		attrs := []slog.Attr{slog.String("error", err.Error())}
		ctx := context.Background()
		if e, ok := courier.AsError(err); ok {
			attrs = append(attrs, slog.String("kind", e.Kind.String()))
			if e.Code != "" {
				attrs = append(attrs, slog.String("code", e.Code))
			}
			if e.Response != nil {
				attrs = append(attrs, slog.Int("status", e.Response.Status))
			}
			if e.Config != nil {
				ctx = e.Config.Context()
				attrs = append(attrs, slog.String("method", e.Config.Method), slog.String("url", e.Config.URL))
			}
		}
		logger.LogAttrs(ctx, slog.LevelWarn, "request failed", attrs...)
		return nil, err
	})

	return reqID, respID
}
