package http

import "time"

const (
	// DefaultTimeout is the request timeout used by the CLI and by
	// WithTimeout callers that want a sane bound. Library defaults have none.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second

	// DefaultAccept is the common Accept header.
	DefaultAccept = "application/json, text/plain, */*"
	// DefaultContentType is the Content-Type default for methods with a body.
	DefaultContentType = "application/x-www-form-urlencoded"
)

// DefaultConfig returns a fresh copy of the library defaults. Each Client
// owns its own copy, so changing one never affects another.
func DefaultConfig() *Config {
	cfg := &Config{
		TransformRequest:  []RequestTransformer{DefaultRequestTransform},
		TransformResponse: []ResponseTransformer{DefaultResponseTransform},
		Transitional: Transitional{
			SilentJSONParsing:   true,
			ForcedJSONParsing:   true,
			ClarifyTimeoutError: false,
		},
		Timeout:          Duration(0),
		MaxContentLength: Ptr[int64](-1),
		MaxBodyLength:    Ptr[int64](-1),
		ValidateStatus:   Validate(func(status int) bool { return status >= 200 && status < 300 }),
		MethodHeaders: MethodHeaders{
			HeaderCommon: Header{"Accept": DefaultAccept},
		},
	}
	for _, m := range []string{MethodDelete, MethodGet, MethodHead, MethodOptions} {
		cfg.MethodHeaders[m] = Header{}
	}
	for _, m := range []string{MethodPost, MethodPut, MethodPatch} {
		cfg.MethodHeaders[m] = Header{"Content-Type": DefaultContentType}
	}
	return cfg
}
