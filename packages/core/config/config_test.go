package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

func TestFindAndLoadConfig_Defaults(t *testing.T) {
	cfg, err := FindAndLoadConfig(t.TempDir())

	require.NoError(t, err)
	assert.True(t, cfg.IsDefault())
}

func TestFindAndLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	content := `
baseURL: https://api.example.com
timeout: 1500
followRedirects: false
headers:
  X-Team: platform
transitional:
  clarifyTimeoutError: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".courier.yaml"), []byte(content), 0644))

	cfg, err := FindAndLoadConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, 1500, cfg.Timeout)
	assert.False(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL())
	assert.Equal(t, "platform", cfg.Headers["X-Team"])
	assert.False(t, cfg.IsDefault())
}

func TestLoadConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"baseURL": "http://localhost:8080", "validateSSL": false}`), 0644))

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.False(t, cfg.GetValidateSSL())
	assert.Equal(t, 30000, cfg.Timeout)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".courierrc")
	require.NoError(t, os.WriteFile(path, []byte("timeout: [nope"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_Merge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"A": "1"}

	merged := base.Merge(&Config{
		BaseURL:     "http://override",
		ValidateSSL: BoolPtr(false),
		Headers:     map[string]string{"B": "2"},
	})

	assert.Equal(t, "http://override", merged.BaseURL)
	assert.False(t, merged.GetValidateSSL())
	assert.True(t, merged.GetFollowRedirects())
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, merged.Headers)
	assert.Equal(t, map[string]string{"A": "1"}, base.Headers)
	assert.Same(t, base, base.Merge(nil))
}

func TestConfig_ToRequestConfig(t *testing.T) {
	cfg := DefaultConfig().Merge(&Config{
		BaseURL:         "http://api.test",
		Timeout:         250,
		FollowRedirects: BoolPtr(false),
		Proxy:           "http://user:pw@proxy.test:3128",
		Headers:         map[string]string{"X-Key": "k"},
		Params:          map[string]string{"v": "2"},
		ResponseType:    "JSON",
	})

	rc, err := cfg.ToRequestConfig()

	require.NoError(t, err)
	assert.Equal(t, "http://api.test", rc.BaseURL)
	assert.Equal(t, 250*time.Millisecond, rc.TimeoutValue())
	assert.Equal(t, 0, *rc.MaxRedirects)
	assert.Equal(t, "proxy.test", rc.Proxy.Host)
	assert.Equal(t, 3128, rc.Proxy.Port)
	assert.Equal(t, "pw", rc.Proxy.Auth.Password)
	assert.Equal(t, "k", rc.MethodHeaders[courier.HeaderCommon]["X-Key"])
	assert.Equal(t, "2", rc.Params["v"])
	assert.Equal(t, courier.ResponseTypeJSON, rc.ResponseType)
}

func TestConfig_SaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courier.yaml")
	cfg := DefaultConfig().Merge(&Config{BaseURL: "http://saved"})

	require.NoError(t, cfg.SaveConfig(path))
	loaded, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "http://saved", loaded.BaseURL)
}
