package http

import (
	"net/http"
	"sort"
	"strings"
)

// Header is a flat set of request headers. Keys keep the caller's casing;
// lookups are case-insensitive.
type Header map[string]string

// Get returns the value for key, ignoring case.
func (h Header) Get(key string) string {
	if v, ok := h[key]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Has reports whether key is present, ignoring case.
func (h Header) Has(key string) bool {
	if _, ok := h[key]; ok {
		return true
	}
	for k := range h {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// Set stores value under key, replacing any entry that differs only in case.
func (h Header) Set(key, value string) {
	h.Del(key)
	h[key] = value
}

// Del removes key and every case variant of it.
func (h Header) Del(key string) {
	for k := range h {
		if strings.EqualFold(k, key) {
			delete(h, k)
		}
	}
}

// Clone returns a copy of h; nil stays nil.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Keys returns the header names in sorted order.
func (h Header) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HTTP converts h into a net/http header.
func (h Header) HTTP() http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		out.Set(k, v)
	}
	return out
}

// normalizeName renames any case variant of name to name itself.
func (h Header) normalizeName(name string) {
	for k, v := range h {
		if k != name && strings.ToUpper(k) == strings.ToUpper(name) {
			h[name] = v
			delete(h, k)
		}
	}
}

func mergeHeader(dst, src Header) Header {
	if dst == nil {
		dst = make(Header, len(src))
	}
	for k, v := range src {
		dst.Set(k, v)
	}
	return dst
}

// HeaderCommon is the MethodHeaders key applied to every method.
const HeaderCommon = "common"

// headerMethods lists the MethodHeaders keys folded away at dispatch.
var headerMethods = [...]string{
	MethodDelete,
	MethodGet,
	MethodHead,
	MethodOptions,
	MethodPost,
	MethodPut,
	MethodPatch,
	HeaderCommon,
}

// MethodHeaders holds default headers keyed by "common" and by lowercase
// method name.
type MethodHeaders map[string]Header

// For returns the headers for key, creating the entry if needed.
func (m MethodHeaders) For(key string) Header {
	h, ok := m[key]
	if !ok || h == nil {
		h = Header{}
		m[key] = h
	}
	return h
}

func (m MethodHeaders) clone() MethodHeaders {
	if m == nil {
		return nil
	}
	out := make(MethodHeaders, len(m))
	for k, h := range m {
		out[k] = h.Clone()
	}
	return out
}

// flattenHeaders folds common and per-method defaults under the explicit
// headers and drops the method-named keys from the result.
func flattenHeaders(method string, methodHeaders MethodHeaders, explicit Header) Header {
	flat := Header{}
	flat = mergeHeader(flat, methodHeaders[HeaderCommon])
	flat = mergeHeader(flat, methodHeaders[method])
	flat = mergeHeader(flat, explicit)
	for _, m := range headerMethods {
		delete(flat, m)
	}
	return flat
}
