package capture

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// Source names the part of a response a capture reads.
type Source string

const (
	SourceBody     Source = "body"
	SourceHeader   Source = "header"
	SourceStatus   Source = "status"
	SourceDuration Source = "duration"
)

// Capture extracts one named value from a response. Path is a gjson path
// for body captures and a header name for header captures.
type Capture struct {
	Name   string
	Source Source
	Path   string
}

// Parse reads a capture written as name=source:path, for example
// token=body:data.token or etag=header:ETag. A bare name=path reads the
// body.
func Parse(spec string) (*Capture, error) {
	name, rest, ok := strings.Cut(spec, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return nil, fmt.Errorf("invalid capture %q: expected name=source:path", spec)
	}

	src, path, hasSource := strings.Cut(rest, ":")
	if !hasSource {
		return &Capture{Name: name, Source: SourceBody, Path: strings.TrimSpace(rest)}, nil
	}

	c := &Capture{Name: name, Source: Source(strings.ToLower(strings.TrimSpace(src))), Path: strings.TrimSpace(path)}
	switch c.Source {
	case SourceBody, SourceStatus, SourceDuration:
	case SourceHeader:
		if c.Path == "" {
			return nil, fmt.Errorf("invalid capture %q: header name required", spec)
		}
	default:
		return nil, fmt.Errorf("invalid capture %q: unknown source %q", spec, src)
	}
	return c, nil
}

type Extractor struct {
	response *courier.Response
	bodyJSON gjson.Result
	isJSON   bool
}

func NewExtractor(resp *courier.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	switch resp.Data.(type) {
	case string, []byte, nil:
		raw := resp.Bytes()
		if gjson.ValidBytes(raw) && len(raw) > 0 {
			e.bodyJSON = gjson.ParseBytes(raw)
			e.isJSON = true
		}
	default:
		// already parsed; re-encode for path queries
		e.bodyJSON = gjson.ParseBytes(resp.Bytes())
		e.isJSON = true
	}
	return e
}

func (e *Extractor) Extract(c *Capture) (any, bool) {
	switch c.Source {
	case SourceBody:
		return e.extractFromBody(c.Path)
	case SourceHeader:
		return e.extractFromHeader(c.Path)
	case SourceStatus:
		return e.response.Status, true
	case SourceDuration:
		return e.response.DurationMs(), true
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.isJSON {
		if path == "" {
			return e.response.String(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value := e.response.Header(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// Query evaluates a gjson path against the response body.
func Query(resp *courier.Response, path string) (any, bool) {
	return NewExtractor(resp).extractFromBody(path)
}

func ExtractAll(resp *courier.Response, captures []*Capture) map[string]any {
	extractor := NewExtractor(resp)
	results := make(map[string]any)

	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			results[c.Name] = value
		}
	}

	return results
}

// Store receives captured values. *env.Resolver satisfies it.
type Store interface {
	SetCapture(source, name string, value any)
}

// Install registers a response interceptor that records captures into
// store under the given source name. Missing values are skipped.
func Install(c *courier.Client, source string, store Store, captures ...*Capture) int {
	return c.Interceptors.Response.Use(func(resp *courier.Response) (*courier.Response, error) {
		for name, value := range ExtractAll(resp, captures) {
			store.SetCapture(source, name, value)
		}
		return resp, nil
	}, nil)
}
