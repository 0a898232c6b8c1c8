package history

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

func openStore(t *testing.T, prefix string) *Store {
	t.Helper()
	store, err := Open(prefix + filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_Prefixes(t *testing.T) {
	for _, prefix := range []string{"", "sqlite:", "sqlite://"} {
		openStore(t, prefix)
	}

	_, err := Open("  ")
	assert.Error(t, err)
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := openStore(t, "")
	ctx := context.Background()

	for i, url := range []string{"http://a.test/1", "http://a.test/2", "http://a.test/3"} {
		e := &Entry{
			Method:          "get",
			URL:             url,
			Status:          200 + i,
			DurationMs:      int64(10 * i),
			RequestHeaders:  map[string]string{"Accept": "application/json"},
			ResponseHeaders: http.Header{"Content-Type": {"application/json"}},
			ResponseBody:    `{"i":` + string(rune('0'+i)) + `}`,
		}
		require.NoError(t, store.Record(ctx, e))
		assert.Equal(t, int64(i+1), e.ID)
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "http://a.test/3", recent[0].URL)
	assert.Equal(t, 202, recent[0].Status)
	assert.Equal(t, "application/json", recent[0].RequestHeaders["Accept"])
	assert.Equal(t, "application/json", recent[0].ResponseHeaders.Get("Content-Type"))

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, `{"i":0}`, got.ResponseBody)

	_, err = store.Get(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	result, err := store.Query(ctx, "SELECT COUNT(*) AS count FROM exchanges")
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Rows[0]["count"])

	n, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestStore_TruncatesBody(t *testing.T) {
	store := openStore(t, "")
	big := make([]byte, MaxBodyBytes+10)
	for i := range big {
		big[i] = 'x'
	}

	e := &Entry{Method: "get", URL: "http://a.test/", ResponseBody: string(big)}
	require.NoError(t, store.Record(context.Background(), e))

	got, err := store.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Len(t, got.ResponseBody, MaxBodyBytes)
}

func TestInstall(t *testing.T) {
	store := openStore(t, "")
	client := courier.NewClient(courier.WithAdapter(courier.HandlerAdapter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))))
	Install(client, store, nil)

	_, err := client.Get(context.Background(), "http://api.test/items", &courier.Config{Params: courier.Params{"page": 1}})
	require.NoError(t, err)
	_, err = client.Get(context.Background(), "http://api.test/missing", nil)
	require.Error(t, err)

	recent, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	failed, ok := recent[0], recent[1]
	assert.Equal(t, 404, failed.Status)
	assert.Equal(t, "Request failed with status code 404", failed.Error)

	assert.Equal(t, "get", ok.Method)
	assert.Equal(t, "http://api.test/items?page=1", ok.URL)
	assert.JSONEq(t, `{"ok":true}`, ok.ResponseBody)
	assert.Empty(t, ok.Error)
}
