package env

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/courier/packages/builtin"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
	"github.com/abdul-hamid-achik/courier/packages/interceptor"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Resolver expands {{...}} placeholders. It supports environment variables
// ({{$HOME}}), built-in functions ({{uuid()}}), captures from earlier
// responses and user-defined variables. It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	captures  map[string]any
	funcs     *builtin.Registry
	logger    *slog.Logger
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		captures:  make(map[string]any),
		funcs:     builtin.NewRegistry(),
		logger:    slog.Default(),
	}
}

// SetLogger sets where unresolved placeholders are reported.
func (r *Resolver) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Functions exposes the registry used for {{fn()}} expressions.
func (r *Resolver) Functions() *builtin.Registry {
	return r.funcs
}

func (r *Resolver) warn(msg string, args ...any) {
	r.mu.RLock()
	logger := r.logger
	r.mu.RUnlock()
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetCapture stores a value under both "source.name" and "name".
func (r *Resolver) SetCapture(source, name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures[source+"."+name] = value
	r.captures[name] = value
}

func (r *Resolver) GetCapture(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.captures[name]
	return v, ok
}

// lookup resolves one placeholder expression.
func (r *Resolver) lookup(expr string) (string, bool) {
	if name, ok := strings.CutPrefix(expr, "$"); ok {
		if val, set := os.LookupEnv(name); set && val != "" {
			return val, true
		}
		return "", false
	}

	if strings.Contains(expr, "(") {
		result, ok, err := r.funcs.Call(expr)
		if err != nil {
			r.warn("function call failed", "expr", expr, "error", err)
			return "", false
		}
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%v", result), true
	}

	if val, ok := r.GetVariable(expr); ok {
		return fmt.Sprintf("%v", val), true
	}
	return "", false
}

// Resolve expands every placeholder in input. Unresolved placeholders are
// left as-is and logged at warn level.
func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := r.lookup(expr); ok {
			return val
		}
		r.warn("unresolved placeholder", "expr", expr)
		return match
	})
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// GetUnresolvedVariables lists the variable names in input that have no
// value, in order of appearance. Environment and function placeholders are
// not reported.
func (r *Resolver) GetUnresolvedVariables(input string) []string {
	var missing []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if strings.HasPrefix(expr, "$") || strings.Contains(expr, "(") {
			continue
		}
		if !r.HasVariable(expr) {
			missing = append(missing, expr)
		}
	}
	return missing
}

func (r *Resolver) HasUnresolvedVariables(input string) bool {
	return len(r.GetUnresolvedVariables(input)) > 0
}

func (r *Resolver) HasVariable(name string) bool {
	_, ok := r.GetVariable(name)
	return ok
}

// GetVariable looks up captures first, then variables.
func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.captures[name]; ok {
		return v, true
	}
	if v, ok := r.variables[name]; ok {
		return v, true
	}
	return nil, false
}

func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	clone.logger = r.logger
	clone.funcs = r.funcs
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	for k, v := range r.captures {
		clone.captures[k] = v
	}
	return clone
}

// ResolveConfig expands placeholders in the URL, base URL, headers, string
// params and string data of cfg. Maps are copied rather than edited in
// place.
func (r *Resolver) ResolveConfig(cfg *courier.Config) *courier.Config {
	cfg.URL = r.Resolve(cfg.URL)
	cfg.BaseURL = r.Resolve(cfg.BaseURL)

	if cfg.Headers != nil {
		headers := make(courier.Header, len(cfg.Headers))
		for k, v := range cfg.Headers {
			headers[k] = r.Resolve(v)
		}
		cfg.Headers = headers
	}

	if cfg.MethodHeaders != nil {
		methodHeaders := make(courier.MethodHeaders, len(cfg.MethodHeaders))
		for scope, h := range cfg.MethodHeaders {
			resolved := make(courier.Header, len(h))
			for k, v := range h {
				resolved[k] = r.Resolve(v)
			}
			methodHeaders[scope] = resolved
		}
		cfg.MethodHeaders = methodHeaders
	}

	if cfg.Params != nil {
		params := make(courier.Params, len(cfg.Params))
		for k, v := range cfg.Params {
			if s, ok := v.(string); ok {
				v = r.Resolve(s)
			}
			params[k] = v
		}
		cfg.Params = params
	}

	if s, ok := cfg.Data.(string); ok {
		cfg.Data = r.Resolve(s)
	}
	return cfg
}

// Install registers r as a synchronous request interceptor on c and
// returns its id.
func (r *Resolver) Install(c *courier.Client) int {
	return c.Interceptors.Request.Use(func(cfg *courier.Config) (*courier.Config, error) {
		return r.ResolveConfig(cfg), nil
	}, nil, interceptor.Options[*courier.Config]{Synchronous: true})
}
