package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/courier/packages/cancel"
	"github.com/abdul-hamid-achik/courier/packages/future"
	"github.com/abdul-hamid-achik/courier/packages/interceptor"
)

type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

func okAdapter(rec *recorder) Adapter {
	return func(cfg *Config) *Future {
		rec.add("adapter")
		return future.Resolved(&Response{Status: 200, Config: cfg, Headers: http.Header{}})
	}
}

func requestStep(rec *recorder, name string) interceptor.Fulfilled[*Config] {
	return func(cfg *Config) (*Config, error) {
		rec.add(name)
		return cfg, nil
	}
}

func responseStep(rec *recorder, name string) interceptor.Fulfilled[*Response] {
	return func(resp *Response) (*Response, error) {
		rec.add(name)
		return resp, nil
	}
}

func TestRequest_InterceptorOrder(t *testing.T) {
	tests := []struct {
		name        string
		synchronous bool
	}{
		{"async", false},
		{"sync", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			client := NewClient(WithAdapter(okAdapter(rec)))
			opts := interceptor.Options[*Config]{Synchronous: tt.synchronous}
			client.Interceptors.Request.Use(requestStep(rec, "R1"), nil, opts)
			client.Interceptors.Request.Use(requestStep(rec, "R2"), nil, opts)
			client.Interceptors.Response.Use(responseStep(rec, "S1"), nil)
			client.Interceptors.Response.Use(responseStep(rec, "S2"), nil)

			_, err := client.Do(context.Background(), &Config{URL: "/order"})

			require.NoError(t, err)
			assert.Equal(t, []string{"R2", "R1", "adapter", "S1", "S2"}, rec.list())
		})
	}
}

func TestRequest_SynchronousDispatchesInline(t *testing.T) {
	var called atomic.Bool
	client := NewClient(WithAdapter(func(cfg *Config) *Future {
		called.Store(true)
		return future.Resolved(&Response{Status: 200, Config: cfg})
	}))
	client.Interceptors.Request.Use(func(cfg *Config) (*Config, error) {
		return cfg, nil
	}, nil, interceptor.Options[*Config]{Synchronous: true})

	p := client.Request(context.Background(), &Config{URL: "/inline"})

	assert.True(t, called.Load())
	_, err := p.Wait()
	require.NoError(t, err)
}

func TestRequest_NoInterceptorsIsSynchronous(t *testing.T) {
	var called atomic.Bool
	client := NewClient(WithAdapter(func(cfg *Config) *Future {
		called.Store(true)
		return future.Resolved(&Response{Status: 200, Config: cfg})
	}))

	client.Request(context.Background(), &Config{URL: "/inline"})

	assert.True(t, called.Load())
}

func TestRequest_SyncRejectedHandlerRecovers(t *testing.T) {
	var seenURL string
	adapter := func(cfg *Config) *Future {
		seenURL = cfg.URL
		return future.Resolved(&Response{Status: 200, Config: cfg})
	}
	client := NewClient(WithAdapter(adapter))
	client.Interceptors.Request.Use(
		func(cfg *Config) (*Config, error) { return nil, errors.New("boom") },
		func(err error) (*Config, error) {
			return &Config{URL: "/recovered", Method: MethodGet, Adapter: adapter}, nil
		},
		interceptor.Options[*Config]{Synchronous: true},
	)

	_, err := client.Do(context.Background(), &Config{URL: "/original"})

	require.NoError(t, err)
	assert.Equal(t, "/recovered", seenURL)
}

func TestRequest_NilConfigFromHandlerKeepsCurrent(t *testing.T) {
	for _, synchronous := range []bool{false, true} {
		t.Run(fmt.Sprintf("synchronous=%t", synchronous), func(t *testing.T) {
			rec := &recorder{}
			client := NewClient(WithAdapter(okAdapter(rec)))
			client.Interceptors.Request.Use(func(cfg *Config) (*Config, error) {
				rec.add("nil")
				return nil, nil
			}, nil, interceptor.Options[*Config]{Synchronous: synchronous})

			resp, err := client.Do(context.Background(), &Config{URL: "/kept"})

			require.NoError(t, err)
			assert.Equal(t, "/kept", resp.Config.URL)
			assert.Equal(t, []string{"nil", "adapter"}, rec.list())
		})
	}
}

func TestRequest_AsyncRejectedHandlerRecoversWithNil(t *testing.T) {
	rec := &recorder{}
	client := NewClient(WithAdapter(okAdapter(rec)))
	client.Interceptors.Request.Use(nil, func(err error) (*Config, error) {
		rec.add("recovered")
		return nil, nil
	})
	client.Interceptors.Request.Use(func(cfg *Config) (*Config, error) {
		return nil, errors.New("boom")
	}, nil)

	resp, err := client.Do(context.Background(), &Config{URL: "/kept"})

	require.NoError(t, err)
	assert.Equal(t, "/kept", resp.Config.URL)
	assert.Equal(t, []string{"recovered", "adapter"}, rec.list())
}

func TestRequest_SyncErrorWithoutRejectedHandler(t *testing.T) {
	var called atomic.Bool
	client := NewClient(WithAdapter(func(cfg *Config) *Future {
		called.Store(true)
		return future.Resolved(&Response{Status: 200, Config: cfg})
	}))
	client.Interceptors.Request.Use(
		func(cfg *Config) (*Config, error) { return nil, errors.New("boom") },
		nil,
		interceptor.Options[*Config]{Synchronous: true},
	)

	_, err := client.Do(context.Background(), &Config{URL: "/x"})

	require.EqualError(t, err, "boom")
	assert.False(t, called.Load())
}

func TestRequest_RunWhenSkipsInterceptor(t *testing.T) {
	rec := &recorder{}
	client := NewClient(WithAdapter(okAdapter(rec)))
	client.Interceptors.Request.Use(requestStep(rec, "skipped"), nil, interceptor.Options[*Config]{
		RunWhen: func(cfg *Config) bool { return cfg.Method == MethodPost },
	})

	_, err := client.Get(context.Background(), "/x", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"adapter"}, rec.list())
}

func TestRequest_EjectedInterceptorDoesNotRun(t *testing.T) {
	rec := &recorder{}
	client := NewClient(WithAdapter(okAdapter(rec)))
	id := client.Interceptors.Response.Use(responseStep(rec, "S1"), nil)
	client.Interceptors.Response.Use(responseStep(rec, "S2"), nil)
	client.Interceptors.Response.Eject(id)

	_, err := client.Get(context.Background(), "/x", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"adapter", "S2"}, rec.list())
}

func TestRequest_ResponseRejectedHandlerRecovers(t *testing.T) {
	client := NewClient(WithAdapter(HandlerAdapter(http.NotFoundHandler())))
	client.Interceptors.Response.Use(nil, func(err error) (*Response, error) {
		e, _ := AsError(err)
		return &Response{Status: 299, Data: "fallback", Config: e.Config}, nil
	})

	resp, err := client.Get(context.Background(), "/missing", nil)

	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Data)
}

func TestRequest_MethodNormalization(t *testing.T) {
	var method string
	client := NewClient(WithAdapter(func(cfg *Config) *Future {
		method = cfg.Method
		return future.Resolved(&Response{Status: 200, Config: cfg})
	}))

	_, err := client.Do(context.Background(), &Config{URL: "/x", Method: "PUT"})
	require.NoError(t, err)
	assert.Equal(t, MethodPut, method)

	_, err = client.Do(context.Background(), &Config{URL: "/x"})
	require.NoError(t, err)
	assert.Equal(t, MethodGet, method)

	client.Defaults.Method = "DELETE"
	_, err = client.Do(context.Background(), &Config{URL: "/x"})
	require.NoError(t, err)
	assert.Equal(t, MethodDelete, method)
}

func TestRequest_HeadersFlattened(t *testing.T) {
	var headers Header
	var methodHeaders MethodHeaders
	client := NewClient(WithAdapter(func(cfg *Config) *Future {
		headers = cfg.Headers
		methodHeaders = cfg.MethodHeaders
		return future.Resolved(&Response{Status: 200, Config: cfg})
	}))
	client.Defaults.MethodHeaders.For(MethodPost).Set("X-Post", "yes")
	client.Defaults.MethodHeaders.For(MethodGet).Set("X-Get", "yes")

	_, err := client.Do(context.Background(), &Config{
		URL:     "/x",
		Method:  MethodPost,
		Headers: Header{"X-Explicit": "1", "Accept": "text/csv"},
	})

	require.NoError(t, err)
	assert.Nil(t, methodHeaders)
	assert.Equal(t, "yes", headers.Get("X-Post"))
	assert.Equal(t, "1", headers.Get("X-Explicit"))
	assert.Equal(t, "text/csv", headers.Get("Accept"))
	assert.False(t, headers.Has("X-Get"))
	for _, m := range headerMethods {
		assert.False(t, headers.Has(m), m)
	}
}

func TestRequest_TransitionalValidation(t *testing.T) {
	tests := []struct {
		name    string
		options Transitional
		code    string
		message string
	}{
		{"wrong type", Transitional{SilentJSONParsing: "yes"}, ErrCodeBadOptionValue, "option silentJSONParsing must be a boolean"},
		{"unknown option", Transitional{"strictMode": true}, ErrCodeBadOption, "Unknown option strictMode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			client := NewClient(WithAdapter(okAdapter(rec)))

			_, err := client.Do(context.Background(), &Config{URL: "/x", Transitional: tt.options})

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			e, _ := AsError(err)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.message, e.Message)
			assert.Empty(t, rec.list())
		})
	}
}

func TestRequest_CancelInFlight(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	source := cancel.NewSource()
	go func() {
		<-started
		source.Cancel("x")
		source.Cancel("y")
	}()

	_, err := NewClient().Get(context.Background(), server.URL, &Config{CancelToken: source.Token})

	require.Error(t, err)
	assert.True(t, IsCancel(err))
	assert.True(t, errors.Is(err, ErrCanceled))
	assert.Contains(t, err.Error(), "x")
	assert.Equal(t, "x", source.Token.Reason().Message)
}

// countingSignal tracks the abort listeners still registered on a signal.
type countingSignal struct {
	cancel.Signal
	active atomic.Int32
}

func (s *countingSignal) AddAbortListener(fn func()) func() {
	s.active.Add(1)
	remove := s.Signal.AddAbortListener(fn)
	var once sync.Once
	return func() {
		once.Do(func() {
			s.active.Add(-1)
			remove()
		})
	}
}

func TestRequest_TokenAndSignalFirstWins(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	source := cancel.NewSource()
	controller := cancel.NewController()
	signal := &countingSignal{Signal: controller.Signal()}
	go func() {
		<-started
		source.Cancel("token first")
	}()

	p := NewClient().Request(context.Background(), &Config{
		URL:         server.URL,
		CancelToken: source.Token,
		Signal:      signal,
	})
	_, err := p.Wait()

	require.Error(t, err)
	assert.True(t, IsCancel(err))
	assert.Equal(t, "token first", err.Error())

	assert.NotPanics(t, controller.Abort)
	_, again := p.Wait()
	assert.Same(t, err, again)
	assert.Equal(t, "token first", again.Error())
	assert.Zero(t, signal.active.Load())
	assert.Equal(t, "token first", source.Token.Reason().Message)
}

func TestRequest_PreAbortedSignalSkipsAdapter(t *testing.T) {
	rec := &recorder{}
	controller := cancel.NewController()
	controller.Abort()

	client := NewClient(WithAdapter(okAdapter(rec)))
	_, err := client.Get(context.Background(), "/x", &Config{Signal: controller.Signal()})

	require.Error(t, err)
	assert.True(t, IsCancel(err))
	assert.Equal(t, cancel.DefaultMessage, err.Error())
	assert.Empty(t, rec.list())
}

func TestRequest_CancelAfterAdapterResolves(t *testing.T) {
	source := cancel.NewSource()
	client := NewClient(WithAdapter(func(cfg *Config) *Future {
		source.Cancel("late")
		return future.Resolved(&Response{Status: 200, Config: cfg})
	}))

	_, err := client.Get(context.Background(), "/x", &Config{CancelToken: source.Token})

	require.Error(t, err)
	assert.True(t, IsCancel(err))
	assert.Equal(t, "late", err.Error())
}

func TestRequest_StatusValidation(t *testing.T) {
	client := NewClient(WithAdapter(HandlerAdapter(http.NotFoundHandler())))

	_, err := client.Get(context.Background(), "/missing", &Config{
		ValidateStatus: Validate(func(status int) bool { return status < 400 }),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStatus))
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindStatus, e.Kind)
	assert.Equal(t, "Request failed with status code 404", e.Message)
	assert.Empty(t, e.Code)
	require.NotNil(t, e.Response)
	assert.Equal(t, 404, e.Response.Status)
	assert.NotNil(t, e.Request)
}

func TestRequest_StatusValidationDisabled(t *testing.T) {
	client := NewClient(WithAdapter(HandlerAdapter(http.NotFoundHandler())))

	resp, err := client.Get(context.Background(), "/missing", &Config{ValidateStatus: Validate(nil)})

	require.NoError(t, err)
	assert.Equal(t, 404, resp.Status)
}

func TestRequest_TransformErrorRejects(t *testing.T) {
	rec := &recorder{}
	client := NewClient(WithAdapter(okAdapter(rec)))

	_, err := client.Post(context.Background(), "/x", map[string]any{"bad": make(chan int)}, nil)

	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeBadRequest, e.Code)
	assert.Empty(t, rec.list())
}

func TestRequest_NilAdapterResult(t *testing.T) {
	client := NewClient(WithAdapter(func(*Config) *Future { return nil }))

	_, err := client.Get(context.Background(), "/x", nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
}
