package http

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
)

var absoluteURLPattern = regexp.MustCompile(`(?i)^([a-z][a-z\d+\-.]*:)?//`)

// IsAbsoluteURL reports whether u has a scheme or is protocol-relative.
func IsAbsoluteURL(u string) bool {
	return absoluteURLPattern.MatchString(u)
}

// CombineURLs joins baseURL and relativeURL with exactly one slash.
func CombineURLs(baseURL, relativeURL string) string {
	if relativeURL == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(relativeURL, "/")
}

// BuildFullPath prefixes requestedURL with baseURL unless it is absolute.
func BuildFullPath(baseURL, requestedURL string) string {
	if baseURL != "" && !IsAbsoluteURL(requestedURL) {
		return CombineURLs(baseURL, requestedURL)
	}
	return requestedURL
}

// BuildURL appends params to rawURL. A serializer, when given, replaces the
// default encoding. Any fragment is dropped once parameters are added.
func BuildURL(rawURL string, params Params, serializer ParamsSerializer) string {
	if params == nil {
		return rawURL
	}

	var serialized string
	if serializer != nil {
		serialized = serializer(params)
	} else {
		serialized = SerializeParams(params)
	}
	if serialized == "" {
		return rawURL
	}

	if i := strings.IndexByte(rawURL, '#'); i != -1 {
		rawURL = rawURL[:i]
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + serialized
}

// SerializeParams is the default params encoding. Keys are emitted in sorted
// order; slices repeat the key with a "[]" suffix.
func SerializeParams(params Params) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		val := params[key]
		if val == nil {
			continue
		}
		name := key
		values := []any{val}
		if items, ok := asSlice(val); ok {
			name = key + "[]"
			values = items
		}
		for _, v := range values {
			parts = append(parts, encodeParam(name)+"="+encodeParam(formatParam(v)))
		}
	}
	return strings.Join(parts, "&")
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func formatParam(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.UTC().Format("2006-01-02T15:04:05.000Z")
	case fmt.Stringer:
		return val.String()
	}
	if isObjectLike(v) {
		b, err := json.Marshal(v)
		if err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}

func isObjectLike(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		return true
	}
	return false
}

var paramUnescapes = strings.NewReplacer(
	"%3A", ":", "%24", "$", "%2C", ",", "%20", "+", "%5B", "[", "%5D", "]",
)

// encodeParam percent-encodes like encodeURIComponent, then restores the
// characters that are readable and safe in a query string.
func encodeParam(s string) string {
	return paramUnescapes.Replace(encodeURIComponent(s))
}

func encodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreservedComponent(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

func isUnreservedComponent(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
