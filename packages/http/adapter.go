package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/abdul-hamid-achik/courier/packages/cancel"
)

// Version is reported in the default User-Agent.
const Version = "0.4.0"

// UserAgent is sent when a request sets no User-Agent header.
var UserAgent = "courier/" + Version

var (
	errTooManyRedirects = errors.New("maximum number of redirects exceeded")
	errBodyTooLarge     = errors.New("request body larger than maxBodyLength limit")
)

// DefaultAdapter returns the adapter used when a config names none.
func DefaultAdapter() Adapter {
	return NetAdapter
}

// exchange tracks the context, timer and cancellation subscriptions of one
// adapter call. end releases all of them.
type exchange struct {
	cfg      *Config
	ctx      context.Context
	abortCtx context.Context
	timerCtx context.Context
	cleanup  []func()
	ended    atomic.Bool
}

func beginExchange(cfg *Config) (*exchange, error) {
	observers := cancel.Observe(cfg.CancelToken, cfg.Signal)
	if reason := cancel.FirstFired(observers); reason != nil {
		return nil, newCancelError(reason, cfg, nil)
	}

	abortCtx, abort := context.WithCancelCause(cfg.Context())
	x := &exchange{cfg: cfg, ctx: abortCtx, abortCtx: abortCtx}
	x.cleanup = append(x.cleanup, func() { abort(nil) })

	if timeout := cfg.TimeoutValue(); timeout > 0 {
		timerCtx, stop := context.WithTimeout(abortCtx, timeout)
		x.ctx = timerCtx
		x.timerCtx = timerCtx
		x.cleanup = append(x.cleanup, stop)
	}

	for _, o := range observers {
		x.cleanup = append(x.cleanup, o.Subscribe(func(reason *cancel.Cancel) {
			abort(reason)
		}))
	}
	return x, nil
}

func (x *exchange) end() {
	if !x.ended.CompareAndSwap(false, true) {
		return
	}
	for i := len(x.cleanup) - 1; i >= 0; i-- {
		x.cleanup[i]()
	}
}

// fail turns an error from the transport into an *Error, giving
// cancellation and timeouts precedence over whatever the transport saw.
func (x *exchange) fail(err error, req *http.Request) *Error {
	cfg := x.cfg

	var reason *cancel.Cancel
	if errors.As(context.Cause(x.abortCtx), &reason) {
		return newCancelError(reason, cfg, req)
	}
	if x.timerCtx != nil && x.abortCtx.Err() == nil && errors.Is(x.timerCtx.Err(), context.DeadlineExceeded) {
		return timeoutError(cfg, req)
	}
	if parentErr := cfg.Context().Err(); parentErr != nil {
		return newCancelError(&cancel.Cancel{Message: parentErr.Error()}, cfg, req)
	}

	switch {
	case errors.Is(err, errTooManyRedirects):
		return newError(KindTransport, errTooManyRedirects.Error(), cfg, ErrCodeTooManyRedirects, req, nil)
	case errors.Is(err, errBodyTooLarge):
		return newError(KindTransport, errBodyTooLarge.Error(), cfg, ErrCodeMaxBodyLengthExceeded, req, nil)
	}
	return enhanceError(err, cfg, "", req, nil)
}

func timeoutError(cfg *Config, req *http.Request) *Error {
	message := cfg.TimeoutMessage
	if message == "" {
		message = fmt.Sprintf("timeout of %dms exceeded", cfg.TimeoutValue().Milliseconds())
	}
	code := ErrCodeAborted
	if cfg.Transitional.Flag(ClarifyTimeoutError, false) {
		code = ErrCodeTimedOut
	}
	return newError(KindTransport, message, cfg, code, req, nil)
}

// buildRequest turns a dispatched config into an *http.Request bound to ctx.
func buildRequest(ctx context.Context, cfg *Config) (*http.Request, error) {
	u, err := url.Parse(BuildFullPath(cfg.BaseURL, cfg.URL))
	if err != nil {
		return nil, newError(KindTransport, fmt.Sprintf("invalid URL: %v", err), cfg, ErrCodeBadRequest, nil, nil)
	}

	auth := cfg.Auth
	if auth == nil && u.User != nil {
		pass, _ := u.User.Password()
		auth = &BasicAuth{Username: u.User.Username(), Password: pass}
	}
	u.User = nil

	body, length, err := requestBody(cfg)
	if err != nil {
		return nil, err
	}

	target := BuildURL(u.String(), cfg.Params, cfg.ParamsSerializer)
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(cfg.Method), target, body)
	if err != nil {
		return nil, newError(KindTransport, err.Error(), cfg, ErrCodeBadRequest, nil, nil)
	}
	if length >= 0 {
		req.ContentLength = length
	}

	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if !cfg.Headers.Has("User-Agent") {
		req.Header.Set("User-Agent", UserAgent)
	}
	if auth != nil {
		req.Header.Del("Authorization")
		req.SetBasicAuth(auth.Username, auth.Password)
	}
	return req, nil
}

// requestBody returns the transformed body and its length, -1 if unknown.
func requestBody(cfg *Config) (io.Reader, int64, error) {
	var r io.Reader
	length := int64(-1)

	switch v := cfg.Data.(type) {
	case nil:
		return nil, 0, nil
	case string:
		r, length = strings.NewReader(v), int64(len(v))
	case []byte:
		r, length = bytes.NewReader(v), int64(len(v))
	case interface {
		io.Reader
		Len() int
	}:
		r, length = v, int64(v.Len())
	case io.Reader:
		r = v
	default:
		return nil, 0, newError(KindTransport,
			"Data after transformation must be a string, a byte slice, or an io.Reader",
			cfg, ErrCodeBadRequest, nil, nil)
	}

	limit := cfg.maxBodyLength()
	if limit > -1 {
		if length > limit {
			return nil, 0, newError(KindTransport, errBodyTooLarge.Error(), cfg, ErrCodeMaxBodyLengthExceeded, nil, nil)
		}
		if length < 0 {
			r = &limitedBody{r: r, remaining: limit}
		}
	}
	if cfg.OnUploadProgress != nil {
		r = &progressReader{r: r, total: length, fn: cfg.OnUploadProgress}
	}
	return r, length, nil
}

// limitedBody fails once more than the allowed number of bytes is read.
type limitedBody struct {
	r         io.Reader
	remaining int64
}

func (l *limitedBody) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errBodyTooLarge
	}
	return n, err
}

type progressReader struct {
	r      io.Reader
	loaded int64
	total  int64
	fn     ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		p.fn(ProgressEvent{Loaded: p.loaded, Total: p.total})
	}
	return n, err
}

// streamBody ends the exchange when the caller closes the stream.
type streamBody struct {
	io.Reader
	closer io.Closer
	x      *exchange
}

func (s *streamBody) Close() error {
	err := s.closer.Close()
	s.x.end()
	return err
}

// readResponse materializes resp per cfg.ResponseType. For streams it
// takes ownership of the exchange and returns true.
func readResponse(x *exchange, req *http.Request, resp *http.Response) (*Response, bool, error) {
	cfg := x.cfg

	var body io.Reader = resp.Body
	if cfg.OnDownloadProgress != nil {
		body = &progressReader{r: body, total: resp.ContentLength, fn: cfg.OnDownloadProgress}
	}

	out := &Response{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    resp.Header,
		Config:     cfg,
		Request:    req,
	}

	if cfg.ResponseType == ResponseTypeStream {
		out.Data = &streamBody{Reader: body, closer: resp.Body, x: x}
		return out, true, nil
	}
	defer resp.Body.Close()

	limit := cfg.maxContentLength()
	if limit > -1 {
		body = io.LimitReader(body, limit+1)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, false, x.fail(err, req)
	}
	if limit > -1 && int64(len(raw)) > limit {
		return nil, false, newError(KindTransport,
			fmt.Sprintf("maxContentLength size of %d exceeded", limit),
			cfg, ErrCodeBadResponse, req, nil)
	}

	out.Data, err = decodeBody(raw, cfg)
	if err != nil {
		return nil, false, enhanceError(err, cfg, ErrCodeBadResponse, req, out)
	}
	return out, false, nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeBody renders raw per ResponseType and ResponseEncoding.
func decodeBody(raw []byte, cfg *Config) (any, error) {
	if cfg.ResponseType == ResponseTypeArrayBuffer {
		return raw, nil
	}

	switch enc := strings.ToLower(cfg.ResponseEncoding); enc {
	case "", "utf8", "utf-8":
		return string(bytes.TrimPrefix(raw, utf8BOM)), nil
	case "base64":
		return base64.StdEncoding.EncodeToString(raw), nil
	case "hex":
		return hex.EncodeToString(raw), nil
	default:
		e, err := htmlindex.Get(enc)
		if err != nil {
			return nil, fmt.Errorf("unsupported response encoding %q: %w", enc, err)
		}
		decoded, err := e.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s body: %w", enc, err)
		}
		return string(decoded), nil
	}
}
