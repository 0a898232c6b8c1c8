package http

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/abdul-hamid-achik/courier/packages/future"
)

// HandlerAdapter serves requests with h in process, without opening a
// socket. Redirects are returned as-is rather than followed.
func HandlerAdapter(h http.Handler) Adapter {
	return func(cfg *Config) *Future {
		return future.New(func(resolve func(*Response), reject func(error)) {
			go func() {
				resp, err := serveHandler(h, cfg)
				if err != nil {
					reject(err)
					return
				}
				Settle(resolve, reject, resp)
			}()
		})
	}
}

func serveHandler(h http.Handler, cfg *Config) (*Response, error) {
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
	req.RequestURI = req.URL.RequestURI()
	req.RemoteAddr = "192.0.2.1:1234"
	if req.Host == "" {
		req.Host = "example.com"
	}

	rec := httptest.NewRecorder()
	served := make(chan struct{})
	start := time.Now()
	go func() {
		defer close(served)
		h.ServeHTTP(rec, req)
	}()

	select {
	case <-served:
	case <-x.ctx.Done():
		return nil, x.fail(x.ctx.Err(), req)
	}

	resp, streaming, err := readResponse(x, req, rec.Result())
	if err != nil {
		return nil, err
	}
	resp.Duration = time.Since(start)
	return resp, nil
}
