package http

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/http/httpproxy"

	"github.com/abdul-hamid-achik/courier/packages/future"
)

var envProxy = sync.OnceValue(func() func(*url.URL) (*url.URL, error) {
	return httpproxy.FromEnvironment().ProxyFunc()
})

func proxyFromEnvironment(req *http.Request) (*url.URL, error) {
	return envProxy()(req.URL)
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: proxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// transportKey identifies the transport settings a config asks for.
// Configs with equal keys share one connection pool.
type transportKey struct {
	proxy        string
	noProxy      bool
	socketPath   string
	insecure     bool
	noDecompress bool
}

var transports sync.Map

func transportFor(cfg *Config) http.RoundTripper {
	if cfg.Transport != nil {
		return cfg.Transport
	}

	key := transportKey{
		socketPath:   cfg.SocketPath,
		insecure:     !getBool(cfg.ValidateSSL, true),
		noDecompress: !getBool(cfg.Decompress, true),
	}
	if cfg.Proxy != nil {
		if cfg.Proxy.Disabled {
			key.noProxy = true
		} else {
			key.proxy = cfg.Proxy.URL().String()
		}
	}

	if t, ok := transports.Load(key); ok {
		return t.(*http.Transport)
	}

	t := newTransport()
	switch {
	case key.noProxy:
		t.Proxy = nil
	case key.proxy != "":
		t.Proxy = http.ProxyURL(cfg.Proxy.URL())
	}
	if key.socketPath != "" {
		socketPath := key.socketPath
		t.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		}
	}
	// Configure TLS verification
	if key.insecure {
		t.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}
	t.DisableCompression = key.noDecompress

	actual, _ := transports.LoadOrStore(key, t)
	return actual.(*http.Transport)
}

func redirectPolicy(cfg *Config) func(*http.Request, []*http.Request) error {
	limit := cfg.maxRedirects()
	return func(_ *http.Request, via []*http.Request) error {
		if limit <= 0 {
			return http.ErrUseLastResponse
		}
		if len(via) > limit {
			return errTooManyRedirects
		}
		return nil
	}
}

// NetAdapter sends the request over the network with net/http.
func NetAdapter(cfg *Config) *Future {
	return future.New(func(resolve func(*Response), reject func(error)) {
		go func() {
			resp, err := doNet(cfg)
			if err != nil {
				reject(err)
				return
			}
			Settle(resolve, reject, resp)
		}()
	})
}

func doNet(cfg *Config) (*Response, error) {
	x, err := beginExchange(cfg)
	if err != nil {
		return nil, err
	}
	streaming := false
	defer func() {
		if !streaming {
			x.end()
		}
	}()

	req, err := buildRequest(x.ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Transport:     transportFor(cfg),
		CheckRedirect: redirectPolicy(cfg),
	}

	start := time.Now()
	httpResp, err := client.Do(req)
	if err != nil {
		return nil, x.fail(err, req)
	}

	resp, streaming, err := readResponse(x, req, httpResp)
	if err != nil {
		return nil, err
	}
	resp.Duration = time.Since(start)
	return resp, nil
}
