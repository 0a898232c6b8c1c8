package http

import (
	"net/url"
)

// MergeConfig combines base with override into a new config. Neither input
// is modified and the result shares no maps or slices with them.
//
// Each field follows a fixed strategy:
//   - URL, Method, Data: override only; base is ignored.
//   - ValidateStatus: present in either, override wins. An explicitly
//     disabled validator counts as present.
//   - Headers, MethodHeaders, Params, Transitional, Extra: merged key by
//     key, recursing into nested maps.
//   - Everything else: override wins, else base. An empty string or nil
//     pointer counts as absent, so an override cannot clear a string key
//     such as BaseURL or ResponseType.
//
// Sequences (transformer lists) are replaced, never concatenated.
func MergeConfig(base, override *Config) *Config {
	if base == nil {
		base = &Config{}
	}
	if override == nil {
		override = &Config{}
	}

	out := &Config{
		URL:    override.URL,
		Method: override.Method,
		Data:   cloneValue(override.Data),
	}

	out.BaseURL = pickString(base.BaseURL, override.BaseURL)
	out.TimeoutMessage = pickString(base.TimeoutMessage, override.TimeoutMessage)
	out.ResponseType = ResponseType(pickString(string(base.ResponseType), string(override.ResponseType)))
	out.ResponseEncoding = pickString(base.ResponseEncoding, override.ResponseEncoding)
	out.SocketPath = pickString(base.SocketPath, override.SocketPath)

	out.Timeout = clonePtr(pickPtr(base.Timeout, override.Timeout))
	out.MaxContentLength = clonePtr(pickPtr(base.MaxContentLength, override.MaxContentLength))
	out.MaxBodyLength = clonePtr(pickPtr(base.MaxBodyLength, override.MaxBodyLength))
	out.MaxRedirects = clonePtr(pickPtr(base.MaxRedirects, override.MaxRedirects))
	out.Decompress = clonePtr(pickPtr(base.Decompress, override.Decompress))
	out.ValidateSSL = clonePtr(pickPtr(base.ValidateSSL, override.ValidateSSL))
	out.Auth = clonePtr(pickPtr(base.Auth, override.Auth))
	out.Proxy = cloneProxy(pickPtr(base.Proxy, override.Proxy))

	out.ParamsSerializer = base.ParamsSerializer
	if override.ParamsSerializer != nil {
		out.ParamsSerializer = override.ParamsSerializer
	}
	out.Transport = base.Transport
	if override.Transport != nil {
		out.Transport = override.Transport
	}
	out.OnUploadProgress = base.OnUploadProgress
	if override.OnUploadProgress != nil {
		out.OnUploadProgress = override.OnUploadProgress
	}
	out.OnDownloadProgress = base.OnDownloadProgress
	if override.OnDownloadProgress != nil {
		out.OnDownloadProgress = override.OnDownloadProgress
	}
	out.Adapter = base.Adapter
	if override.Adapter != nil {
		out.Adapter = override.Adapter
	}
	out.CancelToken = base.CancelToken
	if override.CancelToken != nil {
		out.CancelToken = override.CancelToken
	}
	out.Signal = base.Signal
	if override.Signal != nil {
		out.Signal = override.Signal
	}
	out.ctx = base.ctx
	if override.ctx != nil {
		out.ctx = override.ctx
	}

	if override.TransformRequest != nil {
		out.TransformRequest = append([]RequestTransformer(nil), override.TransformRequest...)
	} else if base.TransformRequest != nil {
		out.TransformRequest = append([]RequestTransformer(nil), base.TransformRequest...)
	}
	if override.TransformResponse != nil {
		out.TransformResponse = append([]ResponseTransformer(nil), override.TransformResponse...)
	} else if base.TransformResponse != nil {
		out.TransformResponse = append([]ResponseTransformer(nil), base.TransformResponse...)
	}

	// direct key: the pointer itself marks presence
	switch {
	case override.ValidateStatus != nil:
		out.ValidateStatus = clonePtr(override.ValidateStatus)
	case base.ValidateStatus != nil:
		out.ValidateStatus = clonePtr(base.ValidateStatus)
	}

	out.Headers = mergeHeaders(base.Headers, override.Headers)
	out.MethodHeaders = mergeMethodHeaders(base.MethodHeaders, override.MethodHeaders)
	out.Params = Params(mergeMaps(base.Params, override.Params))
	out.Transitional = Transitional(mergeMaps(base.Transitional, override.Transitional))
	out.Extra = mergeMaps(base.Extra, override.Extra)

	return out
}

func pickString(base, override string) string {
	if override != "" {
		return override
	}
	return base
}

func pickPtr[T any](base, override *T) *T {
	if override != nil {
		return override
	}
	return base
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneProxy(p *Proxy) *Proxy {
	if p == nil {
		return nil
	}
	out := *p
	out.Auth = clonePtr(p.Auth)
	return &out
}

func mergeHeaders(base, override Header) Header {
	if base == nil && override == nil {
		return nil
	}
	out := base.Clone()
	return mergeHeader(out, override)
}

func mergeMethodHeaders(base, override MethodHeaders) MethodHeaders {
	if base == nil && override == nil {
		return nil
	}
	out := base.clone()
	if out == nil {
		out = make(MethodHeaders, len(override))
	}
	for k, h := range override {
		out[k] = mergeHeaders(out[k], h)
	}
	return out
}

// mergeMaps merges override into a deep copy of base. Nested maps on both
// sides are merged recursively; any other override value replaces base.
func mergeMaps[M ~map[string]any](base, override M) map[string]any {
	if base == nil && override == nil {
		return nil
	}
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, v := range override {
		if bm, ok := asMap(out[k]); ok {
			if om, ok := asMap(v); ok {
				out[k] = mergeMaps(bm, om)
				continue
			}
		}
		out[k] = cloneValue(v)
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Params:
		return m, true
	case Transitional:
		return m, true
	}
	return nil, false
}

// cloneValue copies plain maps and sequences and passes anything else
// through untouched.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return mergeMaps(val, nil)
	case Params:
		return Params(mergeMaps(val, nil))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	case url.Values:
		out := make(url.Values, len(val))
		for k, vs := range val {
			out[k] = append([]string(nil), vs...)
		}
		return out
	case Header:
		return val.Clone()
	}
	return v
}
