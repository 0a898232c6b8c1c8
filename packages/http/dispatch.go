package http

import (
	"github.com/abdul-hamid-achik/courier/packages/cancel"
	"github.com/abdul-hamid-achik/courier/packages/future"
)

// cancellationRequested returns the pending cancellation for cfg, checking
// the token before the signal.
func cancellationRequested(cfg *Config) error {
	if cfg.CancelToken != nil {
		if reason := cfg.CancelToken.Reason(); reason != nil {
			return newCancelError(reason, cfg, nil)
		}
	}
	if cfg.Signal != nil && cfg.Signal.Aborted() {
		return newCancelError(&cancel.Cancel{Message: cancel.DefaultMessage}, cfg, nil)
	}
	return nil
}

// dispatchRequest sends cfg through its adapter and runs the response
// transforms over the outcome.
func dispatchRequest(cfg *Config) *Future {
	if err := cancellationRequested(cfg); err != nil {
		return future.Rejected[*Response](err)
	}

	if cfg.Headers == nil {
		cfg.Headers = Header{}
	}
	data, err := TransformRequestData(cfg, cfg.Data, cfg.Headers, cfg.TransformRequest)
	if err != nil {
		return future.Rejected[*Response](enhanceError(err, cfg, ErrCodeBadRequest, nil, nil))
	}
	cfg.Data = data

	cfg.Headers = flattenHeaders(cfg.Method, cfg.MethodHeaders, cfg.Headers)
	cfg.MethodHeaders = nil

	adapter := cfg.Adapter
	if adapter == nil {
		adapter = DefaultAdapter()
	}
	pending := adapter(cfg)
	if pending == nil {
		return future.Rejected[*Response](newError(KindTransport, "adapter returned no result", cfg, "", nil, nil))
	}

	return future.Then(pending,
		func(resp *Response) (*Response, error) {
			if err := cancellationRequested(cfg); err != nil {
				return nil, err
			}
			data, err := TransformResponseData(cfg, resp.Data, resp.Headers, cfg.TransformResponse)
			if err != nil {
				return nil, enhanceError(err, cfg, "", resp.Request, resp)
			}
			resp.Data = data
			return resp, nil
		},
		func(reason error) (*Response, error) {
			if IsCancel(reason) {
				return nil, reason
			}
			if err := cancellationRequested(cfg); err != nil {
				return nil, err
			}
			if e, ok := AsError(reason); ok && e.Response != nil {
				data, err := TransformResponseData(cfg, e.Response.Data, e.Response.Headers, cfg.TransformResponse)
				if err != nil {
					return nil, enhanceError(err, cfg, "", e.Request, e.Response)
				}
				e.Response.Data = data
			}
			return nil, reason
		},
	)
}
