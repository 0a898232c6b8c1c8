package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/courier/packages/future"
	"github.com/abdul-hamid-achik/courier/packages/interceptor"
)

// Interceptors holds the request-side and response-side registries.
type Interceptors struct {
	Request  *interceptor.Manager[*Config]
	Response *interceptor.Manager[*Response]
}

func newInterceptors() Interceptors {
	return Interceptors{
		Request:  interceptor.NewManager[*Config](),
		Response: interceptor.NewManager[*Response](),
	}
}

// Client issues requests. Defaults are merged under every call; they may be
// changed between calls but not concurrently with one.
type Client struct {
	Defaults     *Config
	Interceptors Interceptors
	logger       *slog.Logger
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		Defaults:     DefaultConfig(),
		Interceptors: newInterceptors(),
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Create returns a client whose defaults are DefaultConfig merged with cfg.
func Create(cfg *Config) *Client {
	return NewClient(WithConfig(cfg))
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.Defaults.Timeout = Duration(d)
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		if !follow {
			c.Defaults.MaxRedirects = Ptr(0)
		} else if c.Defaults.MaxRedirects != nil && *c.Defaults.MaxRedirects == 0 {
			c.Defaults.MaxRedirects = nil
		}
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.Defaults.MaxRedirects = Ptr(max)
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.commonHeaders().Set(key, value)
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		common := c.commonHeaders()
		for k, v := range headers {
			common.Set(k, v)
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.Defaults.ValidateSSL = Bool(validate)
	}
}

// WithProxy sets the proxy URL for all requests. An unparsable URL is
// ignored.
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		if p, err := ParseProxy(proxyURL); err == nil {
			c.Defaults.Proxy = p
		}
	}
}

// WithBaseURL prefixes relative request URLs.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.Defaults.BaseURL = baseURL
	}
}

// WithAdapter replaces the default network adapter.
func WithAdapter(adapter Adapter) ClientOption {
	return func(c *Client) {
		c.Defaults.Adapter = adapter
	}
}

// WithTransport sets the RoundTripper used by the net adapter.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.Defaults.Transport = rt
	}
}

// WithConfig merges cfg over the current defaults.
func WithConfig(cfg *Config) ClientOption {
	return func(c *Client) {
		c.Defaults = MergeConfig(c.Defaults, cfg)
	}
}

// WithLogger sets the logger for dispatch events.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func (c *Client) commonHeaders() Header {
	if c.Defaults.MethodHeaders == nil {
		c.Defaults.MethodHeaders = MethodHeaders{}
	}
	return c.Defaults.MethodHeaders.For(HeaderCommon)
}

// Create derives a client with defaults merged with cfg and empty
// interceptor registries.
func (c *Client) Create(cfg *Config) *Client {
	return &Client{
		Defaults:     MergeConfig(c.Defaults, cfg),
		Interceptors: newInterceptors(),
		logger:       c.logger,
	}
}

// Request runs cfg through the interceptor chain and the adapter. The
// returned future settles with the response or an *Error. A config returned
// by a request handler replaces the current one whole; nil keeps it.
func (c *Client) Request(ctx context.Context, cfg *Config) *Future {
	merged := MergeConfig(c.Defaults, cfg)
	if ctx != nil {
		merged.ctx = ctx
	}

	switch {
	case merged.Method != "":
		merged.Method = strings.ToLower(merged.Method)
	case c.Defaults.Method != "":
		merged.Method = strings.ToLower(c.Defaults.Method)
	default:
		merged.Method = MethodGet
	}

	if err := validateTransitional(merged); err != nil {
		return future.Rejected[*Response](err)
	}

	var requestChain []*interceptor.Handler[*Config]
	synchronous := true
	c.Interceptors.Request.ForEach(func(h *interceptor.Handler[*Config]) {
		if h.RunWhen != nil && !h.RunWhen(merged) {
			return
		}
		synchronous = synchronous && h.Synchronous
		requestChain = append([]*interceptor.Handler[*Config]{h}, requestChain...)
	})

	var responseChain []*interceptor.Handler[*Response]
	c.Interceptors.Response.ForEach(func(h *interceptor.Handler[*Response]) {
		responseChain = append(responseChain, h)
	})

	c.logger.Debug("dispatching request",
		"method", merged.Method,
		"url", merged.URL,
		"interceptors", len(requestChain),
		"synchronous", synchronous,
	)

	var pending *Future
	if synchronous {
		pending = c.runSync(merged, requestChain)
	} else {
		pending = c.runAsync(merged, requestChain)
	}
	for _, h := range responseChain {
		pending = future.Then(pending, h.Fulfilled, h.Rejected)
	}
	return c.logSettled(pending, merged)
}

// runAsync chains every request handler as a continuation before dispatch.
// As on the sync path, a handler returning a nil config keeps the last one.
func (c *Client) runAsync(cfg *Config, chain []*interceptor.Handler[*Config]) *Future {
	last := cfg
	p := future.Resolved(cfg)
	for _, h := range chain {
		p = future.Then(p, keepConfig(h.Fulfilled, &last), recoverConfig(h.Rejected, &last))
	}
	return future.FlatMap(p, dispatchRequest)
}

func keepConfig(fn interceptor.Fulfilled[*Config], last **Config) func(*Config) (*Config, error) {
	if fn == nil {
		return nil
	}
	return func(cfg *Config) (*Config, error) {
		next, err := fn(cfg)
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = cfg
		}
		*last = next
		return next, nil
	}
}

func recoverConfig(fn interceptor.Rejected[*Config], last **Config) func(error) (*Config, error) {
	if fn == nil {
		return nil
	}
	return func(err error) (*Config, error) {
		recovered, rerr := fn(err)
		if rerr != nil {
			return nil, rerr
		}
		if recovered == nil {
			recovered = *last
		}
		*last = recovered
		return recovered, nil
	}
}

// runSync runs the request handlers inline and dispatches immediately.
func (c *Client) runSync(cfg *Config, chain []*interceptor.Handler[*Config]) *Future {
	for _, h := range chain {
		if h.Fulfilled == nil {
			continue
		}
		next, err := h.Fulfilled(cfg)
		if err == nil {
			if next != nil {
				cfg = next
			}
			continue
		}
		if h.Rejected == nil {
			return future.Rejected[*Response](err)
		}
		recovered, rerr := h.Rejected(err)
		if rerr != nil {
			return future.Rejected[*Response](rerr)
		}
		if recovered != nil {
			cfg = recovered
		}
		break
	}
	return dispatchRequest(cfg)
}

func (c *Client) logSettled(pending *Future, cfg *Config) *Future {
	if !c.logger.Enabled(cfg.Context(), slog.LevelDebug) {
		return pending
	}
	go func() {
		resp, err := pending.Wait()
		if err != nil {
			c.logger.Debug("request failed", "method", cfg.Method, "url", cfg.URL, "error", err)
			return
		}
		c.logger.Debug("request settled",
			"method", cfg.Method,
			"url", cfg.URL,
			"status", resp.Status,
			"duration", resp.Duration,
		)
	}()
	return pending
}

// Do issues cfg and waits for the result.
func (c *Client) Do(ctx context.Context, cfg *Config) (*Response, error) {
	return c.Request(ctx, cfg).Wait()
}

func (c *Client) Get(ctx context.Context, url string, cfg *Config) (*Response, error) {
	return c.Do(ctx, withMethod(cfg, MethodGet, url, nil, false))
}

func (c *Client) Delete(ctx context.Context, url string, cfg *Config) (*Response, error) {
	return c.Do(ctx, withMethod(cfg, MethodDelete, url, nil, false))
}

func (c *Client) Head(ctx context.Context, url string, cfg *Config) (*Response, error) {
	return c.Do(ctx, withMethod(cfg, MethodHead, url, nil, false))
}

func (c *Client) Options(ctx context.Context, url string, cfg *Config) (*Response, error) {
	return c.Do(ctx, withMethod(cfg, MethodOptions, url, nil, false))
}

func (c *Client) Post(ctx context.Context, url string, data any, cfg *Config) (*Response, error) {
	return c.Do(ctx, withMethod(cfg, MethodPost, url, data, true))
}

func (c *Client) Put(ctx context.Context, url string, data any, cfg *Config) (*Response, error) {
	return c.Do(ctx, withMethod(cfg, MethodPut, url, data, true))
}

func (c *Client) Patch(ctx context.Context, url string, data any, cfg *Config) (*Response, error) {
	return c.Do(ctx, withMethod(cfg, MethodPatch, url, data, true))
}

// GetURI returns the path and query cfg would be sent to, without the
// base URL.
func (c *Client) GetURI(cfg *Config) string {
	merged := MergeConfig(c.Defaults, cfg)
	uri := BuildURL(merged.URL, merged.Params, merged.ParamsSerializer)
	return strings.TrimPrefix(uri, "?")
}

func withMethod(cfg *Config, method, url string, data any, withData bool) *Config {
	out := &Config{}
	if cfg != nil {
		c := *cfg
		out = &c
	}
	out.Method = method
	out.URL = url
	if withData {
		out.Data = data
	}
	return out
}
