package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/courier/packages/core/parser"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// probeTimeout bounds each readiness request.
const probeTimeout = 5 * time.Second

// waitForService polls a URL until it returns the expected status code or times out
func (r *Runner) waitForService(ctx context.Context, cfg *parser.WaitFor) error {
	if cfg == nil {
		return nil
	}

	url := r.resolver.Resolve(cfg.URL)
	r.logger.Info("waiting for service", "url", url, "status", cfg.Status, "timeout", cfg.Timeout)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var lastErr error
	var lastStatus int
	for {
		resp, err := r.client.Get(ctx, url, &courier.Config{
			Timeout:        courier.Duration(probeTimeout),
			ValidateStatus: courier.Validate(nil),
		})
		if err != nil {
			lastErr = err
		} else {
			lastStatus = resp.Status
			if resp.Status == cfg.Status {
				r.logger.Info("service ready", "url", url, "status", resp.Status)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if lastErr != nil && lastStatus == 0 {
				return fmt.Errorf("service %s not ready after %v: %w", url, cfg.Timeout, lastErr)
			}
			return fmt.Errorf("service %s not ready after %v: got status %d, expected %d",
				url, cfg.Timeout, lastStatus, cfg.Status)
		case <-time.After(cfg.Interval):
		}
	}
}
