package http

import (
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/courier/packages/cancel"
)

func handlerClient(h http.HandlerFunc) *Client {
	return NewClient(WithAdapter(HandlerAdapter(h)))
}

func TestHandlerAdapter_JSONRoundTrip(t *testing.T) {
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/items", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name":"widget"}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1,"tags":["a"]}`))
	})

	resp, err := client.Post(context.Background(), "/items", map[string]string{"name": "widget"}, nil)

	require.NoError(t, err)
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, "Created", resp.StatusText)
	assert.Equal(t, map[string]any{"id": float64(1), "tags": []any{"a"}}, resp.Data)
	assert.Equal(t, "POST", resp.Request.Method)
}

func TestHandlerAdapter_FormValues(t *testing.T) {
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, contentTypeForm, r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1", r.PostForm.Get("a"))
		w.WriteHeader(http.StatusNoContent)
	})

	resp, err := client.Post(context.Background(), "/form", url.Values{"a": {"1"}}, nil)

	require.NoError(t, err)
	assert.Equal(t, 204, resp.Status)
}

func TestHandlerAdapter_Multipart(t *testing.T) {
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "value", r.FormValue("field"))
		file, header, err := r.FormFile("upload")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "hello", string(content))
		w.WriteHeader(http.StatusOK)
	})

	form := NewFormData("").
		Append("field", "value").
		AppendReader("upload", "notes.txt", strings.NewReader("hello"))
	_, err := client.Post(context.Background(), "/upload", form, nil)

	require.NoError(t, err)
}

func TestHandlerAdapter_ResponseTypes(t *testing.T) {
	payload := []byte{0xEF, 0xBB, 0xBF, 'h', 'i'}
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	})

	tests := []struct {
		name string
		cfg  *Config
		want any
	}{
		{"utf8 strips bom", &Config{}, "hi"},
		{"arraybuffer", &Config{ResponseType: ResponseTypeArrayBuffer}, payload},
		{"base64", &Config{ResponseEncoding: "base64"}, "77u/aGk="},
		{"hex", &Config{ResponseEncoding: "hex"}, hex.EncodeToString(payload)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.Get(context.Background(), "/", tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Data)
		})
	}
}

func TestHandlerAdapter_CharsetDecoding(t *testing.T) {
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xE9})
	})

	resp, err := client.Get(context.Background(), "/", &Config{ResponseEncoding: "latin1"})

	require.NoError(t, err)
	assert.Equal(t, "café", resp.Data)
}

func TestHandlerAdapter_UnknownEncoding(t *testing.T) {
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	})

	_, err := client.Get(context.Background(), "/", &Config{ResponseEncoding: "klingon"})

	require.Error(t, err)
	e, _ := AsError(err)
	assert.Equal(t, ErrCodeBadResponse, e.Code)
}

func TestHandlerAdapter_Stream(t *testing.T) {
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"streamed":true}`))
	})

	resp, err := client.Get(context.Background(), "/", &Config{ResponseType: ResponseTypeStream})

	require.NoError(t, err)
	body, ok := resp.Data.(io.ReadCloser)
	require.True(t, ok)
	content, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, `{"streamed":true}`, string(content))
}

func TestHandlerAdapter_MaxContentLength(t *testing.T) {
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	})

	_, err := client.Get(context.Background(), "/", &Config{MaxContentLength: Ptr[int64](4)})

	require.Error(t, err)
	assert.Equal(t, "maxContentLength size of 4 exceeded", err.Error())
}

func TestHandlerAdapter_MaxBodyLength(t *testing.T) {
	var served atomic.Bool
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {
		served.Store(true)
	})

	_, err := client.Post(context.Background(), "/", "0123456789", &Config{MaxBodyLength: Ptr[int64](4)})

	require.Error(t, err)
	e, _ := AsError(err)
	assert.Equal(t, ErrCodeMaxBodyLengthExceeded, e.Code)
	assert.False(t, served.Load())
}

func TestHandlerAdapter_InvalidBody(t *testing.T) {
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.Post(context.Background(), "/", 42, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Data after transformation must be")
}

func TestHandlerAdapter_Progress(t *testing.T) {
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = w.Write([]byte("downloaded"))
	})

	var uploaded, downloaded atomic.Int64
	_, err := client.Post(context.Background(), "/", "uploaded", &Config{
		OnUploadProgress:   func(e ProgressEvent) { uploaded.Store(e.Loaded) },
		OnDownloadProgress: func(e ProgressEvent) { downloaded.Store(e.Loaded) },
	})

	require.NoError(t, err)
	assert.Equal(t, int64(len("uploaded")), uploaded.Load())
	assert.Equal(t, int64(len("downloaded")), downloaded.Load())
}

func TestHandlerAdapter_StrictJSONParsing(t *testing.T) {
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	resp, err := client.Get(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "not json", resp.Data)

	_, err = client.Get(context.Background(), "/", &Config{
		ResponseType: ResponseTypeJSON,
		Transitional: Transitional{SilentJSONParsing: false},
	})
	require.Error(t, err)
	e, _ := AsError(err)
	assert.Equal(t, ErrCodeJSONParse, e.Code)
}

func TestHandlerAdapter_CancelWhileServing(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	})

	controller := cancel.NewController()
	go func() {
		<-started
		controller.Abort()
	}()

	_, err := client.Get(context.Background(), "/", &Config{Signal: controller.Signal()})

	require.Error(t, err)
	assert.True(t, IsCancel(err))
}

func TestHandlerAdapter_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	client := handlerClient(func(w http.ResponseWriter, r *http.Request) {
		<-release
	})

	_, err := client.Get(context.Background(), "/", &Config{Timeout: Duration(20 * time.Millisecond)})

	require.Error(t, err)
	e, _ := AsError(err)
	assert.Equal(t, ErrCodeAborted, e.Code)
}

func TestNetAdapter_TokenListenerRemovedAfterRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	source := cancel.NewSource()
	var fired atomic.Int32
	source.Token.Subscribe(func(*cancel.Cancel) { fired.Add(1) })

	_, err := NewClient().Get(context.Background(), server.URL, &Config{CancelToken: source.Token})
	require.NoError(t, err)

	source.Cancel("after")
	assert.Equal(t, int32(1), fired.Load())
}

func TestNetAdapter_Proxy(t *testing.T) {
	var proxied atomic.Bool
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied.Store(true)
		assert.Equal(t, "http://upstream.invalid/path", r.URL.String())
		w.WriteHeader(http.StatusOK)
	}))
	defer proxy.Close()

	p, err := ParseProxy(proxy.URL)
	require.NoError(t, err)

	_, err = NewClient().Get(context.Background(), "http://upstream.invalid/path", &Config{Proxy: p})

	require.NoError(t, err)
	assert.True(t, proxied.Load())
}

func TestNetAdapter_CustomTransport(t *testing.T) {
	client := NewClient(WithTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Status:     "200 OK",
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(`[1,2]`)),
			Request:    r,
		}, nil
	})))

	resp, err := client.Get(context.Background(), "http://example.invalid/", nil)

	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2)}, resp.Data)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestTransportFor_SharesPools(t *testing.T) {
	a := transportFor(&Config{ValidateSSL: Bool(false)})
	b := transportFor(&Config{ValidateSSL: Bool(false)})
	c := transportFor(&Config{})

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.True(t, a.(*http.Transport).TLSClientConfig.InsecureSkipVerify)
	assert.Nil(t, transportFor(&Config{Proxy: NoProxy()}).(*http.Transport).Proxy)
}
