package http

import (
	"bytes"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRequestTransform(t *testing.T) {
	reader := strings.NewReader("stream")

	tests := []struct {
		name        string
		data        any
		headers     Header
		want        any
		contentType string
	}{
		{"nil", nil, Header{}, nil, ""},
		{"bytes", []byte("raw"), Header{}, []byte("raw"), ""},
		{"reader", reader, Header{}, reader, ""},
		{"form values", url.Values{"a": {"1"}}, Header{}, "a=1", contentTypeForm},
		{"map", map[string]any{"a": 1}, Header{}, `{"a":1}`, contentTypeJSON},
		{"struct", struct {
			Name string `json:"name"`
		}{"x"}, Header{}, `{"name":"x"}`, contentTypeJSON},
		{"slice", []int{1, 2}, Header{}, `[1,2]`, contentTypeJSON},
		{"keeps content type", map[string]any{}, Header{"content-type": "application/vnd+json"}, `{}`, "application/vnd+json"},
		{"plain string", "hello", Header{}, "hello", ""},
		{"json string kept", ` {"a":1} `, Header{"Content-Type": "application/json"}, `{"a":1}`, "application/json"},
		{"json string quoted", "hello", Header{"Content-Type": "application/json"}, `"hello"`, "application/json"},
		{"number", 42, Header{}, 42, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultRequestTransform(&Config{}, tt.data, tt.headers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.contentType, tt.headers["Content-Type"])
		})
	}
}

func TestDefaultRequestTransform_FormData(t *testing.T) {
	headers := Header{"Content-Type": "application/json"}
	form := NewFormData("").Append("a", "1")

	got, err := DefaultRequestTransform(&Config{}, form, headers)

	require.NoError(t, err)
	body, ok := got.(*bytes.Buffer)
	require.True(t, ok)
	assert.Contains(t, body.String(), `name="a"`)
	assert.True(t, strings.HasPrefix(headers.Get("Content-Type"), "multipart/form-data; boundary="))
}

func TestDefaultResponseTransform(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		data    any
		want    any
		wantErr bool
	}{
		{"parses json", &Config{}, `{"a":[1,true,null]}`, map[string]any{"a": []any{float64(1), true, nil}}, false},
		{"keeps text", &Config{}, "plain", "plain", false},
		{"keeps empty", &Config{}, "", "", false},
		{"keeps bytes", &Config{}, []byte(`{"a":1}`), []byte(`{"a":1}`), false},
		{"forced off", &Config{Transitional: Transitional{ForcedJSONParsing: false}}, `{"a":1}`, `{"a":1}`, false},
		{"strict parses", &Config{ResponseType: ResponseTypeJSON, Transitional: Transitional{SilentJSONParsing: false, ForcedJSONParsing: false}}, `[1]`, []any{float64(1)}, false},
		{"strict fails", &Config{ResponseType: ResponseTypeJSON, Transitional: Transitional{SilentJSONParsing: false}}, `{oops`, nil, true},
		{"silent ignores", &Config{ResponseType: ResponseTypeJSON}, `{oops`, `{oops`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultResponseTransform(tt.cfg, tt.data, nil)
			if tt.wantErr {
				require.Error(t, err)
				e, ok := AsError(err)
				require.True(t, ok)
				assert.Equal(t, ErrCodeJSONParse, e.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransformRequestData_StopsOnError(t *testing.T) {
	calls := 0
	fail := func(*Config, any, Header) (any, error) {
		calls++
		return nil, assert.AnError
	}
	never := func(*Config, any, Header) (any, error) {
		calls++
		return nil, nil
	}

	_, err := TransformRequestData(&Config{}, "x", Header{}, []RequestTransformer{fail, never})

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}
