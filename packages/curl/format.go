package curl

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// Command renders cfg as an equivalent curl command. The URL is resolved
// against BaseURL and Params the way the client would send it. Multipart
// and streamed bodies cannot be rendered.
func Command(cfg *courier.Config) (string, error) {
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = "GET"
	}
	full := courier.BuildURL(courier.BuildFullPath(cfg.BaseURL, cfg.URL), cfg.Params, cfg.ParamsSerializer)

	parts := []string{"curl"}
	switch method {
	case "GET":
	case "HEAD":
		parts = append(parts, "-I")
	default:
		parts = append(parts, "-X", method)
	}

	headers := flatten(cfg)
	body, contentType, err := renderBody(cfg.Data)
	if err != nil {
		return "", err
	}
	if contentType != "" && !headers.Has("Content-Type") {
		headers.Set("Content-Type", contentType)
	}
	keys := headers.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, "-H", quote(k+": "+headers.Get(k)))
	}

	if cfg.Auth != nil {
		parts = append(parts, "-u", quote(cfg.Auth.Username+":"+cfg.Auth.Password))
	}
	if cfg.ValidateSSL != nil && !*cfg.ValidateSSL {
		parts = append(parts, "-k")
	}
	if cfg.MaxRedirects == nil || *cfg.MaxRedirects > 0 {
		parts = append(parts, "-L")
		if cfg.MaxRedirects != nil {
			parts = append(parts, "--max-redirs", strconv.Itoa(*cfg.MaxRedirects))
		}
	}
	if t := cfg.TimeoutValue(); t > 0 {
		parts = append(parts, "-m", strconv.FormatFloat(t.Seconds(), 'f', -1, 64))
	}
	if cfg.Proxy != nil {
		if u := cfg.Proxy.URL(); u != nil {
			parts = append(parts, "-x", quote(u.String()))
		}
	}
	if cfg.SocketPath != "" {
		parts = append(parts, "--unix-socket", quote(cfg.SocketPath))
	}
	if cfg.Decompress != nil && *cfg.Decompress {
		parts = append(parts, "--compressed")
	}
	if body != "" {
		parts = append(parts, "--data-raw", quote(body))
	}
	parts = append(parts, quote(full))
	return strings.Join(parts, " "), nil
}

func flatten(cfg *courier.Config) courier.Header {
	out := courier.Header{}
	for _, key := range []string{courier.HeaderCommon, strings.ToLower(cfg.Method)} {
		for k, v := range cfg.MethodHeaders[key] {
			out.Set(k, v)
		}
	}
	for k, v := range cfg.Headers {
		out.Set(k, v)
	}
	return out
}

func renderBody(data any) (string, string, error) {
	switch v := data.(type) {
	case nil:
		return "", "", nil
	case string:
		return v, "", nil
	case []byte:
		return string(v), "", nil
	case url.Values:
		return v.Encode(), "application/x-www-form-urlencoded", nil
	case *courier.FormData:
		return "", "", fmt.Errorf("multipart bodies cannot be rendered as curl")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", "", fmt.Errorf("encode body: %w", err)
	}
	return string(b), "application/json", nil
}

// quote wraps s in single quotes when the shell would split or expand it.
func quote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@,+%", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
