package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/courier/packages/history"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

func TestSplitHeader(t *testing.T) {
	name, value, err := splitHeader("X-Trace:  abc:def ")
	require.NoError(t, err)
	assert.Equal(t, "X-Trace", name)
	assert.Equal(t, "abc:def", value)

	_, _, err = splitHeader("no-colon")
	assert.Error(t, err)
	_, _, err = splitHeader(": value")
	assert.Error(t, err)
}

func TestAppendParam(t *testing.T) {
	v := appendParam(nil, "a")
	assert.Equal(t, "a", v)
	v = appendParam(v, "b")
	assert.Equal(t, []any{"a", "b"}, v)
	v = appendParam(v, "c")
	assert.Equal(t, []any{"a", "b", "c"}, v)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitParseError, exitCode(withExit(ExitParseError, errors.New("x"))))
	assert.Equal(t, ExitUsageError, exitCode(fmt.Errorf("wrapped: %w", withExit(ExitUsageError, nil))))
	assert.Equal(t, ExitCheckFailure, exitCode(errors.New("plain")))
	assert.Equal(t, "", withExit(ExitCheckFailure, nil).Error())
}

func setRequestFlags(t *testing.T, set func()) {
	t.Helper()
	saved := []any{paramFlags, userFlag, responseTypeFlag, jsonFlag, formFlags, dataFlag}
	t.Cleanup(func() {
		paramFlags = saved[0].([]string)
		userFlag = saved[1].(string)
		responseTypeFlag = saved[2].(string)
		jsonFlag = saved[3].(string)
		formFlags = saved[4].([]string)
		dataFlag = saved[5].(string)
	})
	set()
}

func TestBuildRequest_JSON(t *testing.T) {
	setRequestFlags(t, func() {
		jsonFlag = `{"name":"ada"}`
		paramFlags = []string{"tag=a", "tag=b", "page=2"}
		userFlag = "u:p"
	})

	cfg, err := buildRequest("", "/users", nil)

	require.NoError(t, err)
	assert.Equal(t, courier.MethodPost, cfg.Method)
	assert.Equal(t, "application/json", cfg.Headers.Get("Content-Type"))
	assert.Equal(t, courier.Params{"tag": []any{"a", "b"}, "page": "2"}, cfg.Params)
	assert.Equal(t, &courier.BasicAuth{Username: "u", Password: "p"}, cfg.Auth)
}

func TestBuildRequest_InvalidJSON(t *testing.T) {
	setRequestFlags(t, func() { jsonFlag = `{nope` })

	_, err := buildRequest("", "/users", nil)

	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestBuildRequest_DataFromStdin(t *testing.T) {
	setRequestFlags(t, func() { dataFlag = "@-" })

	cfg, err := buildRequest("PUT", "/notes/1", strings.NewReader("plain text"))

	require.NoError(t, err)
	assert.Equal(t, "put", cfg.Method)
	assert.Equal(t, "plain text", cfg.Data)
	assert.Nil(t, cfg.Headers)
}

func TestBuildRequest_DefaultsToGet(t *testing.T) {
	setRequestFlags(t, func() {})

	cfg, err := buildRequest("", "/health", nil)

	require.NoError(t, err)
	assert.Equal(t, courier.MethodGet, cfg.Method)
	assert.Nil(t, cfg.Data)
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.courier", ".courier.yaml", "courier.env.yaml", "notes.md", "nested/c.yml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("requests: []\n"), 0644))
	}

	files, err := collectFiles([]string{dir})
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		rel, _ := filepath.Rel(dir, f)
		names = append(names, filepath.ToSlash(rel))
	}
	assert.ElementsMatch(t, []string{"a.yaml", "b.courier", "nested/c.yml"}, names)

	_, err = collectFiles([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestConvertCurl(t *testing.T) {
	var buf bytes.Buffer
	err := convertCurl(&buf, []*courier.Config{
		{Method: "post", URL: "https://api.example.com/users", Headers: courier.Header{"Content-Type": "application/json"}, Data: `{"a":1}`},
		{Method: "get", URL: "https://api.example.com/health"},
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "name: request1")
	assert.Contains(t, out, "name: request2")
	assert.Contains(t, out, "url: https://api.example.com/health")
}

func TestReplayConfig(t *testing.T) {
	cfg := replayConfig(&history.Entry{
		Method:         "POST",
		URL:            "https://api.example.com/users?x=1",
		RequestHeaders: map[string]string{"X-Trace": "1", "Content-Length": "10"},
	})

	assert.Equal(t, "post", cfg.Method)
	assert.Equal(t, "https://api.example.com/users?x=1", cfg.URL)
	assert.Equal(t, "1", cfg.Headers.Get("X-Trace"))
	assert.False(t, cfg.Headers.Has("Content-Length"))
}

func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte("requests:\n  - name: a\n    url: /a\n"), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("requests:\n  - name: b\n"), 0644))

	stdout, stderr, err := executeRoot(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Valid: "+good)

	_, stderr, err = executeRoot(t, "validate", dir)
	assert.Equal(t, ExitParseError, exitCode(err))
	assert.Contains(t, stderr, "url is required")
}

func TestListCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte("requests:\n  - {name: login, method: post, url: /login, tags: [auth]}\n  - {name: me, url: /me, depends: [login]}\n"), 0644))

	stdout, _, err := executeRoot(t, "list", path)

	require.NoError(t, err)
	assert.Contains(t, stdout, "login  POST /login")
	assert.Contains(t, stdout, "tags: auth")
	assert.Contains(t, stdout, "depends: login")
}
