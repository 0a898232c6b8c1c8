package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// RequestTransformer rewrites the request body before dispatch. It may
// adjust headers, which are the explicit headers of cfg.
type RequestTransformer func(cfg *Config, data any, headers Header) (any, error)

// ResponseTransformer rewrites the response body before it reaches the
// response interceptors.
type ResponseTransformer func(cfg *Config, data any, headers http.Header) (any, error)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded;charset=utf-8"
)

// TransformRequestData runs fns over data in order.
func TransformRequestData(cfg *Config, data any, headers Header, fns []RequestTransformer) (any, error) {
	var err error
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		if data, err = fn(cfg, data, headers); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// TransformResponseData runs fns over data in order.
func TransformResponseData(cfg *Config, data any, headers http.Header, fns []ResponseTransformer) (any, error) {
	var err error
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		if data, err = fn(cfg, data, headers); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// DefaultRequestTransform encodes the body according to its Go type:
// bytes and readers pass through, url.Values become a form, FormData becomes
// multipart, and maps, structs and slices become JSON.
func DefaultRequestTransform(_ *Config, data any, headers Header) (any, error) {
	headers.normalizeName("Accept")
	headers.normalizeName("Content-Type")

	switch v := data.(type) {
	case nil:
		return nil, nil
	case []byte, io.Reader:
		return data, nil
	case *FormData:
		body, contentType, err := v.Encode()
		if err != nil {
			return nil, err
		}
		headers.Set("Content-Type", contentType)
		return body, nil
	case url.Values:
		setContentTypeIfUnset(headers, contentTypeForm)
		return v.Encode(), nil
	case string:
		if strings.HasPrefix(headers.Get("Content-Type"), contentTypeJSON) {
			return stringifySafely(v)
		}
		return v, nil
	}

	if isObjectLike(data) {
		setContentTypeIfUnset(headers, contentTypeJSON)
		return stringifySafely(data)
	}
	return data, nil
}

// DefaultResponseTransform parses string bodies as JSON. Invalid JSON is
// returned unchanged unless strict parsing applies: silentJSONParsing off
// and a json response type.
func DefaultResponseTransform(cfg *Config, data any, _ http.Header) (any, error) {
	silent := cfg.Transitional.Flag(SilentJSONParsing, true)
	forced := cfg.Transitional.Flag(ForcedJSONParsing, true)
	strict := !silent && cfg.ResponseType == ResponseTypeJSON

	s, ok := data.(string)
	if !ok || s == "" || !(strict || forced) {
		return data, nil
	}
	if gjson.Valid(s) {
		return gjson.Parse(s).Value(), nil
	}
	if strict {
		return nil, newError(KindTransport, "invalid JSON in response body", cfg, ErrCodeJSONParse, nil, nil)
	}
	return data, nil
}

func setContentTypeIfUnset(headers Header, value string) {
	if !headers.Has("Content-Type") {
		headers["Content-Type"] = value
	}
}

// stringifySafely keeps strings that already hold JSON and encodes
// everything else.
func stringifySafely(v any) (string, error) {
	if s, ok := v.(string); ok && json.Valid([]byte(s)) {
		return strings.TrimSpace(s), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
