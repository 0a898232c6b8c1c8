package parser

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/courier/packages/assertions"
	"github.com/abdul-hamid-achik/courier/packages/capture"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

type File struct {
	Path      string         `yaml:"-"`
	Variables map[string]any `yaml:"variables,omitempty"`
	WaitFor   *WaitFor       `yaml:"waitFor,omitempty"`
	Requests  []*Request     `yaml:"-"`
}

// WaitFor names a URL that must answer with Status before any request in
// the file runs.
type WaitFor struct {
	URL      string        `yaml:"url,omitempty"`
	Status   int           `yaml:"status,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
}

type Request struct {
	Name        string   `yaml:"name,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`

	Method    string            `yaml:"method,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Params    map[string]any    `yaml:"params,omitempty"`
	JSON      any               `yaml:"json,omitempty"`
	Body      string            `yaml:"body,omitempty"`
	Form      map[string]string `yaml:"form,omitempty"`
	Multipart map[string]string `yaml:"multipart,omitempty"`
	Auth      *Auth             `yaml:"auth,omitempty"`

	Timeout      time.Duration `yaml:"timeout,omitempty"`
	MaxRedirects *int          `yaml:"maxRedirects,omitempty"`
	ResponseType string        `yaml:"responseType,omitempty"`

	Assert  []string `yaml:"assert,omitempty"`
	Capture []string `yaml:"capture,omitempty"`

	Depends    []string      `yaml:"depends,omitempty"`
	Skip       string        `yaml:"skip,omitempty"`
	Only       bool          `yaml:"only,omitempty"`
	Retry      int           `yaml:"retry,omitempty"`
	RetryDelay time.Duration `yaml:"retryDelay,omitempty"`
	RetryOn    []int         `yaml:"retryOn,omitempty"`

	Assertions []*assertions.Assertion `yaml:"-"`
	Captures   []*capture.Capture      `yaml:"-"`
	Line       int                     `yaml:"-"`
}

// Auth sets credentials on one request. Basic is "user:password".
type Auth struct {
	Basic  string `yaml:"basic,omitempty"`
	Bearer string `yaml:"bearer,omitempty"`
}

// bodies counts the body forms set on r.
func (r *Request) bodies() int {
	n := 0
	if r.JSON != nil {
		n++
	}
	if r.Body != "" {
		n++
	}
	if len(r.Form) > 0 {
		n++
	}
	if len(r.Multipart) > 0 {
		n++
	}
	return n
}

// Config builds the request config. Multipart file paths resolve against
// baseDir. Placeholders are left for the client's resolver.
func (r *Request) Config(baseDir string) *courier.Config {
	cfg := &courier.Config{
		URL:          r.URL,
		Method:       strings.ToLower(r.Method),
		ResponseType: courier.ResponseType(strings.ToLower(r.ResponseType)),
		MaxRedirects: r.MaxRedirects,
	}
	if len(r.Headers) > 0 {
		cfg.Headers = courier.Header(r.Headers).Clone()
	}
	if len(r.Params) > 0 {
		cfg.Params = courier.Params{}
		for k, v := range r.Params {
			cfg.Params[k] = v
		}
	}
	if r.Timeout > 0 {
		cfg.Timeout = courier.Duration(r.Timeout)
	}

	switch {
	case r.JSON != nil:
		cfg.Data = r.JSON
		if cfg.Headers == nil {
			cfg.Headers = courier.Header{}
		}
		if !cfg.Headers.Has("Content-Type") {
			cfg.Headers.Set("Content-Type", "application/json")
		}
	case r.Body != "":
		cfg.Data = r.Body
	case len(r.Form) > 0:
		values := url.Values{}
		for k, v := range r.Form {
			values.Set(k, v)
		}
		cfg.Data = values
	case len(r.Multipart) > 0:
		form := courier.NewFormData(baseDir)
		for _, name := range sortedKeys(r.Multipart) {
			value := r.Multipart[name]
			if path, ok := strings.CutPrefix(value, "@"); ok {
				form.AppendFile(name, path)
			} else {
				form.Append(name, value)
			}
		}
		cfg.Data = form
	}

	if r.Auth != nil {
		if r.Auth.Basic != "" {
			user, pass, _ := strings.Cut(r.Auth.Basic, ":")
			cfg.Auth = &courier.BasicAuth{Username: user, Password: pass}
		}
		if r.Auth.Bearer != "" {
			if cfg.Headers == nil {
				cfg.Headers = courier.Header{}
			}
			cfg.Headers.Set("Authorization", "Bearer "+r.Auth.Bearer)
		}
	}
	return cfg
}

type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}
