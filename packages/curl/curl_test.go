package curl

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

func TestParse_SimpleGet(t *testing.T) {
	cfg, err := Parse(`curl https://api.example.com/users`)

	require.NoError(t, err)
	assert.Equal(t, "get", cfg.Method)
	assert.Equal(t, "https://api.example.com/users", cfg.URL)
	assert.Nil(t, cfg.Headers)
	assert.Equal(t, 0, *cfg.MaxRedirects)
}

func TestParse_PostWithData(t *testing.T) {
	cfg, err := Parse(`curl https://api.example.com/users -d '{"name":"John"}' -H 'Content-Type: application/json'`)

	require.NoError(t, err)
	assert.Equal(t, "post", cfg.Method)
	assert.Equal(t, `{"name":"John"}`, cfg.Data)
	assert.Equal(t, "application/json", cfg.Headers.Get("content-type"))
}

func TestParse_DataDefaultsToForm(t *testing.T) {
	cfg, err := Parse(`curl -d a=1 --data b=2 --data-urlencode 'q=hello world' http://x.test`)

	require.NoError(t, err)
	assert.Equal(t, "a=1&b=2&q=hello+world", cfg.Data)
	assert.Equal(t, "application/x-www-form-urlencoded", cfg.Headers.Get("Content-Type"))
}

func TestParse_JSONFlag(t *testing.T) {
	cfg, err := Parse(`curl --json '{"a":1}' http://x.test`)

	require.NoError(t, err)
	assert.Equal(t, "post", cfg.Method)
	assert.Equal(t, "application/json", cfg.Headers.Get("Content-Type"))
	assert.Equal(t, "application/json", cfg.Headers.Get("Accept"))
}

func TestParse_Flags(t *testing.T) {
	cfg, err := Parse(`curl -XPUT -u admin:s3cret -k -L --max-redirs 3 -m 2.5 -A agent/1 -e http://ref.test -b 'a=b' --compressed --url https://api.example.com/x`)

	require.NoError(t, err)
	assert.Equal(t, "put", cfg.Method)
	assert.Equal(t, &courier.BasicAuth{Username: "admin", Password: "s3cret"}, cfg.Auth)
	assert.False(t, *cfg.ValidateSSL)
	assert.Equal(t, 3, *cfg.MaxRedirects)
	assert.Equal(t, 2500*time.Millisecond, *cfg.Timeout)
	assert.Equal(t, "agent/1", cfg.Headers.Get("User-Agent"))
	assert.Equal(t, "http://ref.test", cfg.Headers.Get("Referer"))
	assert.Equal(t, "a=b", cfg.Headers.Get("Cookie"))
	assert.True(t, *cfg.Decompress)
	assert.Equal(t, "https://api.example.com/x", cfg.URL)
}

func TestParse_LocationWithoutLimit(t *testing.T) {
	cfg, err := Parse(`curl -L http://x.test`)

	require.NoError(t, err)
	assert.Nil(t, cfg.MaxRedirects)
}

func TestParse_GetMovesDataToQuery(t *testing.T) {
	cfg, err := Parse(`curl -G -d a=1 -d b=2 'http://x.test/search?q=go'`)

	require.NoError(t, err)
	assert.Equal(t, "get", cfg.Method)
	assert.Equal(t, "http://x.test/search?q=go&a=1&b=2", cfg.URL)
	assert.Nil(t, cfg.Data)
}

func TestParse_HeadAndSocketAndProxy(t *testing.T) {
	cfg, err := Parse(`curl -I --unix-socket /var/run/docker.sock -x http://proxy.test:3128 http://localhost/info`)

	require.NoError(t, err)
	assert.Equal(t, "head", cfg.Method)
	assert.Equal(t, "/var/run/docker.sock", cfg.SocketPath)
	require.NotNil(t, cfg.Proxy)
	assert.Equal(t, "proxy.test", cfg.Proxy.Host)
	assert.Equal(t, 3128, cfg.Proxy.Port)
}

func TestParse_Form(t *testing.T) {
	cfg, err := Parse(`curl -F name=widget http://x.test/upload`)

	require.NoError(t, err)
	assert.Equal(t, "post", cfg.Method)
	assert.IsType(t, &courier.FormData{}, cfg.Data)
}

func TestParse_Errors(t *testing.T) {
	tests := []string{
		`curl`,
		`curl -X`,
		`curl -H NoColon http://x.test`,
		`curl -m soon http://x.test`,
		`curl 'http://x.test`,
	}
	for _, cmd := range tests {
		t.Run(cmd, func(t *testing.T) {
			_, err := Parse(cmd)
			assert.Error(t, err)
		})
	}
}

func TestTokenize(t *testing.T) {
	tokens, err := Tokenize("curl -H \"X-Quote: \\\"hi\\\"\" 'it''s' a\\ b \\\n  c ''")

	require.NoError(t, err)
	assert.Equal(t, []string{"curl", "-H", `X-Quote: "hi"`, "its", "a b", "c", ""}, tokens)
}

func TestSplitCommands(t *testing.T) {
	input := `# list
curl https://a.test/users

curl -X POST https://a.test/users \
  -d 'x=1'
curl https://a.test/trailing \`

	commands, err := SplitCommands(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, commands, 3)
	assert.Equal(t, "curl https://a.test/users", commands[0])
	assert.Equal(t, "curl -X POST https://a.test/users  -d 'x=1'", commands[1])
	assert.Equal(t, "curl https://a.test/trailing", commands[2])
}

func TestCommand(t *testing.T) {
	cfg := &courier.Config{
		Method:        "post",
		BaseURL:       "https://api.example.com/v1",
		URL:           "/users",
		Params:        courier.Params{"page": 2},
		Headers:       courier.Header{"X-Trace": "abc def"},
		MethodHeaders: courier.MethodHeaders{courier.HeaderCommon: {"Accept": "application/json"}},
		Data:          map[string]any{"name": "O'Brien"},
		Auth:          &courier.BasicAuth{Username: "u", Password: "p"},
		ValidateSSL:   courier.Bool(false),
		MaxRedirects:  courier.Ptr(0),
		Timeout:       courier.Duration(1500 * time.Millisecond),
	}

	cmd, err := Command(cfg)

	require.NoError(t, err)
	assert.Equal(t,
		`curl -X POST -H 'Accept: application/json' -H 'Content-Type: application/json' -H 'X-Trace: abc def' -u u:p -k -m 1.5 --data-raw '{"name":"O'\''Brien"}' 'https://api.example.com/v1/users?page=2'`,
		cmd)
}

func TestCommand_RoundTrip(t *testing.T) {
	original := `curl -X PATCH -H 'Content-Type: application/json' -L --data-raw '{"a":[1,2]}' https://x.test/items/1`
	cfg, err := Parse(original)
	require.NoError(t, err)

	cmd, err := Command(cfg)
	require.NoError(t, err)
	again, err := Parse(cmd)
	require.NoError(t, err)

	assert.Equal(t, cfg.Method, again.Method)
	assert.Equal(t, cfg.URL, again.URL)
	assert.Equal(t, cfg.Data, again.Data)
	assert.Equal(t, cfg.Headers, again.Headers)
}

func TestCommand_RejectsMultipart(t *testing.T) {
	_, err := Command(&courier.Config{URL: "http://x.test", Data: courier.NewFormData("")})

	assert.ErrorContains(t, err, "multipart")
}

func TestParse_DispatchesThroughClient(t *testing.T) {
	cfg, err := Parse(`curl -X POST -H 'X-Api-Key: k' -d 'a=1' http://svc.test/submit`)
	require.NoError(t, err)

	client := courier.NewClient(courier.WithAdapter(courier.HandlerAdapter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "a=1", string(body))
		w.WriteHeader(http.StatusAccepted)
	}))))

	resp, err := client.Do(context.Background(), cfg)

	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.Status)
}
