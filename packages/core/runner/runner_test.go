package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

func writeCollection(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewRunner(t *testing.T) {
	t.Run("with nil config", func(t *testing.T) {
		r := NewRunner(nil, nil, nil)
		assert.NotNil(t, r)
		assert.NotNil(t, r.client)
		assert.NotNil(t, r.resolver)
	})

	t.Run("with custom config", func(t *testing.T) {
		r := NewRunner(courier.NewClient(), nil, &Config{Parallel: true, Concurrency: 10})
		assert.True(t, r.config.Parallel)
		assert.Equal(t, 10, r.config.Concurrency)
	})
}

func TestRunner_RunFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "ok", "items": [1, 2, 3]}`))
	}))
	defer server.Close()

	path := writeCollection(t, `
requests:
  - name: test
    url: `+server.URL+`/test
    assert:
      - status == 200
      - body.status == ok
      - body.items length 3
`)

	result, err := NewRunner(nil, nil, nil).RunFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Passed())
	assert.Len(t, result.Exchanges(), 1)
}

func TestRunner_RunFile_WithFailingAssertion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	path := writeCollection(t, `
requests:
  - url: `+server.URL+`/test
    assert: ["status == 200"]
`)

	result, err := NewRunner(nil, nil, nil).RunFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.Results[0].Passed())
}

func TestRunner_StatusAssertionOnErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	path := writeCollection(t, `
requests:
  - url: `+server.URL+`/missing
    assert: ["status == 404"]
`)

	result, err := NewRunner(nil, nil, nil).RunFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
}

func TestRunner_RunFile_WithSkip(t *testing.T) {
	path := writeCollection(t, `
requests:
  - url: http://example.invalid/test
    skip: not ready
`)

	result, err := NewRunner(nil, nil, nil).RunFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Passed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "not ready", result.Results[0].SkipReason)
}

func TestRunner_TopologicalSort_CircularDependency(t *testing.T) {
	path := writeCollection(t, `
requests:
  - {name: requestA, url: /a, depends: [requestB]}
  - {name: requestB, url: /b, depends: [requestA]}
`)

	_, err := NewRunner(nil, nil, nil).RunFile(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency")
}

func TestRunner_DependencyOrderAndCaptures(t *testing.T) {
	var mu sync.Mutex
	var executionOrder []string
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		executionOrder = append(executionOrder, r.URL.Path)
		if r.URL.Path == "/b" {
			authHeader = r.Header.Get("Authorization")
		}
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token": "abc123"}`))
	}))
	defer server.Close()

	path := writeCollection(t, `
variables:
  base: `+server.URL+`
requests:
  - name: requestB
    url: "{{base}}/b"
    auth: {bearer: "{{requestA.token}}"}
    depends: [requestA]
  - name: requestA
    url: "{{base}}/a"
    capture: ["token=body:token"]
`)

	result, err := NewRunner(nil, nil, nil).RunFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, []string{"/a", "/b"}, executionOrder)
	assert.Equal(t, "Bearer abc123", authHeader)
	assert.Equal(t, map[string]any{"token": "abc123"}, result.Results[0].Exchange.Captures)
}

func TestRunner_FailedDependencySkips(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	path := writeCollection(t, `
requests:
  - {name: a, url: "`+server.URL+`/a"}
  - {name: b, url: "`+server.URL+`/b", depends: [a]}
  - {name: c, url: "`+server.URL+`/c", depends: [b]}
`)

	result, err := NewRunner(nil, nil, nil).RunFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, "dependency failed", result.Results[2].SkipReason)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRunner_NameFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := writeCollection(t, `
requests:
  - {name: first, url: "`+server.URL+`/first"}
  - {name: second, url: "`+server.URL+`/second"}
`)

	result, err := NewRunner(nil, nil, &Config{NameFilter: "fir*"}).RunFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Skipped)
}

func TestRunner_TagsFilterAndOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := writeCollection(t, `
requests:
  - {url: "`+server.URL+`/smoke", tags: [smoke, api]}
  - {url: "`+server.URL+`/integration", tags: [integration]}
`)
	result, err := NewRunner(nil, nil, &Config{TagsFilter: []string{"smoke"}}).RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Skipped)

	path = writeCollection(t, `
requests:
  - {url: "`+server.URL+`/a"}
  - {url: "`+server.URL+`/b", only: true}
`)
	result, err = NewRunner(nil, nil, nil).RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, "filtered out", result.Results[0].SkipReason)
}

func TestRunner_Bail(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	path := writeCollection(t, `
requests:
  - {url: "`+server.URL+`/first", assert: ["status == 200"]}
  - {url: "`+server.URL+`/second", assert: ["status == 200"]}
`)

	result, err := NewRunner(nil, nil, &Config{Bail: true}).RunFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, int32(1), requestCount.Load())
}

func TestRunner_Retry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := writeCollection(t, `
requests:
  - url: "`+server.URL+`/flaky"
    retry: 3
    retryDelay: 10ms
    retryOn: [503]
`)

	result, err := NewRunner(nil, nil, nil).RunFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 3, result.Results[0].Attempts)
}

func TestRunner_RetryOnOtherStatusStops(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	path := writeCollection(t, `
requests:
  - {url: "`+server.URL+`/", retry: 3, retryDelay: 10ms, retryOn: [503]}
`)

	result, err := NewRunner(nil, nil, nil).RunFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRunner_Parallel(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := writeCollection(t, `
requests:
  - {url: "`+server.URL+`/1"}
  - {url: "`+server.URL+`/2"}
  - {url: "`+server.URL+`/3"}
  - {url: "`+server.URL+`/4"}
`)

	result, err := NewRunner(nil, nil, &Config{Parallel: true, Concurrency: 2}).RunFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 4, result.Passed)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunner_WaitFor(t *testing.T) {
	var probes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" && probes.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := writeCollection(t, `
waitFor:
  url: `+server.URL+`/health
  interval: 10ms
  timeout: 2s
requests:
  - url: `+server.URL+`/ready
`)

	result, err := NewRunner(nil, nil, nil).RunFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, int32(3), probes.Load())
}

func TestRunner_WaitForTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	path := writeCollection(t, `
waitFor: {url: "`+server.URL+`", interval: 10ms, timeout: 50ms}
requests: []
`)

	_, err := NewRunner(nil, nil, nil).RunFile(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "got status 503, expected 200")
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		expected bool
	}{
		{"exact match", "testName", true},
		{"prefix match", "test*", true},
		{"suffix match", "*Name", true},
		{"contains match", "*stNa*", true},
		{"no match", "other*", false},
		{"empty pattern", "", true},
		{"wildcard", "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.name+" - "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.expected, matchesPattern("testName", tt.pattern))
		})
	}
}

func TestHasAnyTag(t *testing.T) {
	tests := []struct {
		tags     []string
		filters  []string
		expected bool
	}{
		{[]string{"smoke", "api"}, []string{"smoke"}, true},
		{[]string{"smoke", "api"}, []string{"integration"}, false},
		{[]string{"smoke", "api"}, []string{"smoke", "integration"}, true},
		{[]string{}, []string{"smoke"}, false},
		{[]string{"smoke"}, []string{}, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, hasAnyTag(tt.tags, tt.filters))
	}
}
