package parser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/courier/packages/assertions"
	"github.com/abdul-hamid-achik/courier/packages/capture"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

const (
	defaultWaitTimeout  = 30 * time.Second
	defaultWaitInterval = time.Second
)

// Extensions lists the file extensions treated as collections.
var Extensions = []string{".yaml", ".yml", ".courier"}

// IsCollection reports whether path has a collection extension.
func IsCollection(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// document is the raw shape; requests stay as nodes to keep line numbers.
type document struct {
	File     `yaml:",inline"`
	Requests []yaml.Node `yaml:"requests"`
}

func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse reads a collection. path is only used in error messages.
func Parse(data []byte, path string) (*File, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{File: path, Line: yamlLine(err), Message: err.Error()}
	}

	file := doc.File
	file.Path = path
	if file.WaitFor != nil {
		if err := file.WaitFor.validate(); err != nil {
			return nil, &ParseError{File: path, Message: err.Error()}
		}
	}

	names := make(map[string]int)
	for i := range doc.Requests {
		node := &doc.Requests[i]
		req := &Request{}
		if err := node.Decode(req); err != nil {
			return nil, &ParseError{File: path, Line: node.Line, Message: err.Error()}
		}
		req.Line = node.Line
		if err := compile(req); err != nil {
			return nil, &ParseError{File: path, Line: node.Line, Message: err.Error()}
		}
		if req.Name != "" {
			if prev, dup := names[req.Name]; dup {
				return nil, &ParseError{File: path, Line: node.Line, Message: fmt.Sprintf("duplicate request name %q (first at line %d)", req.Name, prev)}
			}
			names[req.Name] = node.Line
		}
		file.Requests = append(file.Requests, req)
	}

	for _, req := range file.Requests {
		for _, dep := range req.Depends {
			if _, ok := names[dep]; !ok {
				return nil, &ParseError{File: path, Line: req.Line, Message: fmt.Sprintf("request %q depends on unknown request %q", req.Name, dep)}
			}
		}
	}

	return &file, nil
}

func compile(req *Request) error {
	if strings.TrimSpace(req.URL) == "" {
		return fmt.Errorf("request %q: url is required", req.Name)
	}
	if req.bodies() > 1 {
		return fmt.Errorf("request %q: only one of json, body, form and multipart may be set", req.Name)
	}
	if req.Method == "" {
		req.Method = "GET"
		if req.bodies() > 0 {
			req.Method = "POST"
		}
	}
	req.Method = strings.ToUpper(req.Method)
	if req.Retry < 0 {
		return fmt.Errorf("request %q: retry cannot be negative", req.Name)
	}
	if len(req.Capture) > 0 && req.Name == "" {
		return fmt.Errorf("captures need a named request")
	}

	for _, expr := range req.Assert {
		a, err := assertions.Parse(expr)
		if err != nil {
			return err
		}
		req.Assertions = append(req.Assertions, a)
	}
	for _, spec := range req.Capture {
		c, err := capture.Parse(spec)
		if err != nil {
			return err
		}
		req.Captures = append(req.Captures, c)
	}
	return nil
}

func (w *WaitFor) validate() error {
	if w.URL == "" {
		return fmt.Errorf("waitFor: url is required")
	}
	if w.Status == 0 {
		w.Status = 200
	}
	if w.Timeout <= 0 {
		w.Timeout = defaultWaitTimeout
	}
	if w.Interval <= 0 {
		w.Interval = defaultWaitInterval
	}
	return nil
}

// yamlLine pulls the line number out of a yaml.v3 error, or 0.
func yamlLine(err error) int {
	var line int
	msg := err.Error()
	if i := strings.Index(msg, "line "); i >= 0 {
		_, _ = fmt.Sscanf(msg[i:], "line %d", &line)
	}
	return line
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromConfig describes cfg as a collection request. Multipart bodies
// cannot be written back to a collection.
func FromConfig(name string, cfg *courier.Config) (*Request, error) {
	req := &Request{
		Name:         name,
		Method:       strings.ToUpper(cfg.Method),
		URL:          courier.BuildFullPath(cfg.BaseURL, cfg.URL),
		MaxRedirects: cfg.MaxRedirects,
	}
	if req.Method == "" {
		req.Method = "GET"
	}
	if len(cfg.Headers) > 0 {
		req.Headers = map[string]string(cfg.Headers.Clone())
	}
	if len(cfg.Params) > 0 {
		req.Params = make(map[string]any, len(cfg.Params))
		for k, v := range cfg.Params {
			req.Params[k] = v
		}
	}
	if cfg.Timeout != nil {
		req.Timeout = *cfg.Timeout
	}
	if cfg.Auth != nil {
		req.Auth = &Auth{Basic: cfg.Auth.Username + ":" + cfg.Auth.Password}
	}

	switch v := cfg.Data.(type) {
	case nil:
	case string:
		var doc any
		if strings.HasPrefix(cfg.Headers.Get("Content-Type"), "application/json") && json.Unmarshal([]byte(v), &doc) == nil {
			req.JSON = doc
			break
		}
		req.Body = v
	case []byte:
		req.Body = string(v)
	case url.Values:
		req.Form = make(map[string]string, len(v))
		for k := range v {
			req.Form[k] = v.Get(k)
		}
	case *courier.FormData:
		return nil, fmt.Errorf("request %q: multipart bodies cannot be written to a collection", name)
	default:
		req.JSON = v
	}
	return req, nil
}

// Marshal renders f as a collection document.
func Marshal(f *File) ([]byte, error) {
	doc := struct {
		Variables map[string]any `yaml:"variables,omitempty"`
		WaitFor   *WaitFor       `yaml:"waitFor,omitempty"`
		Requests  []*Request     `yaml:"requests"`
	}{f.Variables, f.WaitFor, f.Requests}
	return yaml.Marshal(doc)
}
