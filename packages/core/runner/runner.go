package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/courier/packages/assertions"
	"github.com/abdul-hamid-achik/courier/packages/capture"
	"github.com/abdul-hamid-achik/courier/packages/core/env"
	"github.com/abdul-hamid-achik/courier/packages/core/parser"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
	"github.com/abdul-hamid-achik/courier/packages/output"
)

const (
	// DefaultConcurrency is the default number of concurrent requests in parallel mode
	DefaultConcurrency = 5
	// DefaultRetryDelay is the default delay between retries
	DefaultRetryDelay = time.Second
)

type Runner struct {
	client   *courier.Client
	resolver *env.Resolver
	config   *Config
	logger   *slog.Logger
}

type Config struct {
	Bail        bool
	NameFilter  string
	TagsFilter  []string
	Parallel    bool
	Concurrency int
	Logger      *slog.Logger
}

// NewRunner runs requests through client. resolver must already be
// installed on client; a nil resolver gets a fresh one installed.
func NewRunner(client *courier.Client, resolver *env.Resolver, cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	if client == nil {
		client = courier.NewClient()
	}
	if resolver == nil {
		resolver = env.NewResolver()
		resolver.Install(client)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		client:   client,
		resolver: resolver,
		config:   cfg,
		logger:   logger,
	}
}

type RunResult struct {
	File     string
	Results  []*RequestResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
}

// Exchanges returns the reports of the requests that ran.
func (r *RunResult) Exchanges() []*output.Exchange {
	var out []*output.Exchange
	for _, res := range r.Results {
		if res.Exchange != nil {
			out = append(out, res.Exchange)
		}
	}
	return out
}

type RequestResult struct {
	Name       string
	Skipped    bool
	SkipReason string
	Attempts   int
	Exchange   *output.Exchange
}

func (r *RequestResult) Passed() bool {
	return !r.Skipped && r.Exchange != nil && r.Exchange.Passed()
}

func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	file, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return r.Run(ctx, file)
}

// Run executes an already parsed collection.
func (r *Runner) Run(ctx context.Context, file *parser.File) (*RunResult, error) {
	r.resolver.SetVariables(file.Variables)

	if err := r.waitForService(ctx, file.WaitFor); err != nil {
		return nil, err
	}
	return r.runRequests(ctx, file)
}

func (r *Runner) runRequests(ctx context.Context, file *parser.File) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		File: file.Path,
	}

	// multipart file paths resolve relative to the collection
	baseDir := filepath.Dir(file.Path)

	hasOnly := slices.ContainsFunc(file.Requests, func(req *parser.Request) bool { return req.Only })

	sortedRequests, err := r.topologicalSort(file.Requests)
	if err != nil {
		return nil, err
	}

	var filteredRequests []*parser.Request
	for _, req := range sortedRequests {
		if !r.shouldRun(req, hasOnly) {
			result.add(&RequestResult{Name: req.Name, Skipped: true, SkipReason: "filtered out"})
			continue
		}
		if req.Skip != "" {
			result.add(&RequestResult{Name: req.Name, Skipped: true, SkipReason: req.Skip})
			continue
		}
		filteredRequests = append(filteredRequests, req)
	}

	hasDependencies := slices.ContainsFunc(filteredRequests, func(req *parser.Request) bool { return len(req.Depends) > 0 })

	if r.config.Parallel && !hasDependencies {
		for _, reqResult := range r.runParallel(ctx, filteredRequests, baseDir) {
			result.add(reqResult)
		}
		result.Duration = time.Since(start)
		return result, nil
	}

	executed := make(map[string]*RequestResult)
	for _, req := range filteredRequests {
		if ctx.Err() != nil {
			result.add(&RequestResult{Name: req.Name, Skipped: true, SkipReason: "canceled"})
			continue
		}

		if dep := failedDependency(req, executed); dep != "" {
			r.logger.Info("skipping request", "request", req.Name, "dependency", dep)
			reqResult := &RequestResult{Name: req.Name, Skipped: true, SkipReason: "dependency failed"}
			executed[req.Name] = reqResult
			result.add(reqResult)
			continue
		}

		reqResult := r.runRequestWithRetry(ctx, req, baseDir, false)
		if req.Name != "" {
			executed[req.Name] = reqResult
		}
		result.add(reqResult)

		if !reqResult.Passed() && r.config.Bail {
			break
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (r *RunResult) add(res *RequestResult) {
	r.Results = append(r.Results, res)
	switch {
	case res.Skipped:
		r.Skipped++
	case res.Passed():
		r.Passed++
	default:
		r.Failed++
	}
}

// failedDependency returns the first dependency of req that did not pass.
func failedDependency(req *parser.Request, executed map[string]*RequestResult) string {
	for _, dep := range req.Depends {
		if res, ok := executed[dep]; ok && !res.Passed() {
			return dep
		}
	}
	return ""
}

func (r *Runner) runParallel(ctx context.Context, requests []*parser.Request, baseDir string) []*RequestResult {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*RequestResult, len(requests))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, req := range requests {
		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = r.runRequestWithRetry(ctx, req, baseDir, true)
		}()
	}

	wg.Wait()
	return results
}

// topologicalSort orders requests so that every request follows its
// dependencies. Independent requests keep their file order.
func (r *Runner) topologicalSort(requests []*parser.Request) ([]*parser.Request, error) {
	present := make(map[string]bool, len(requests))
	for _, req := range requests {
		if req.Name != "" {
			present[req.Name] = true
		}
	}

	placed := make(map[string]bool, len(requests))
	done := make([]bool, len(requests))
	sorted := make([]*parser.Request, 0, len(requests))

	for len(sorted) < len(requests) {
		progressed := false
		for i, req := range requests {
			if done[i] || !r.ready(req, present, placed) {
				continue
			}
			done[i] = true
			sorted = append(sorted, req)
			if req.Name != "" {
				placed[req.Name] = true
			}
			progressed = true
			break
		}
		if !progressed {
			return nil, fmt.Errorf("circular dependency detected in requests")
		}
	}
	return sorted, nil
}

func (r *Runner) ready(req *parser.Request, present, placed map[string]bool) bool {
	for _, dep := range req.Depends {
		if !present[dep] {
			r.logger.Warn("unknown dependency", "request", req.Name, "dependency", dep)
			continue
		}
		if !placed[dep] {
			return false
		}
	}
	return true
}

func (r *Runner) shouldRun(req *parser.Request, hasOnly bool) bool {
	if hasOnly && !req.Only {
		return false
	}

	if r.config.NameFilter != "" {
		if req.Name == "" || !matchesPattern(req.Name, r.config.NameFilter) {
			return false
		}
	}

	if len(r.config.TagsFilter) > 0 {
		if !hasAnyTag(req.Tags, r.config.TagsFilter) {
			return false
		}
	}

	return true
}

// runRequestWithRetry executes a request with retry logic
func (r *Runner) runRequestWithRetry(ctx context.Context, req *parser.Request, baseDir string, parallel bool) *RequestResult {
	retryDelay := DefaultRetryDelay
	if req.RetryDelay > 0 {
		retryDelay = req.RetryDelay
	}

	result := &RequestResult{Name: req.Name}
	for attempt := 0; attempt <= req.Retry; attempt++ {
		result.Attempts = attempt + 1
		result.Exchange = r.executeRequest(ctx, req, baseDir, parallel)

		if result.Passed() || attempt == req.Retry {
			return result
		}

		if len(req.RetryOn) > 0 {
			resp := result.Exchange.Response
			if resp == nil || !slices.Contains(req.RetryOn, resp.Status) {
				return result
			}
		}

		r.logger.Debug("retrying request", "request", result.Exchange.Name, "attempt", attempt+1, "delay", retryDelay)
		select {
		case <-ctx.Done():
			return result
		case <-time.After(retryDelay):
		}
	}
	return result
}

func (r *Runner) executeRequest(ctx context.Context, req *parser.Request, baseDir string, parallel bool) *output.Exchange {
	resp, err := r.client.Do(ctx, req.Config(baseDir))
	x := output.NewExchange(req.Name, resp, err)
	if x.Response == nil {
		return x
	}

	if len(req.Assertions) > 0 {
		x.Results = assertions.EvaluateAllWithBaseDir(x.Response, req.Assertions, baseDir)
	}

	if len(req.Captures) > 0 {
		x.Captures = capture.ExtractAll(x.Response, req.Captures)
		// parallel runs have no dependencies to feed
		if !parallel {
			for name, value := range x.Captures {
				r.resolver.SetCapture(req.Name, name, value)
			}
		}
	}
	return x
}

// matchesPattern matches name against a pattern with an optional leading
// and/or trailing "*".
func matchesPattern(name, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	prefix := strings.HasPrefix(pattern, "*")
	suffix := strings.HasSuffix(pattern, "*")
	core := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")

	switch {
	case prefix && suffix:
		return strings.Contains(name, core)
	case prefix:
		return strings.HasSuffix(name, core)
	case suffix:
		return strings.HasPrefix(name, core)
	}
	return name == pattern
}

func hasAnyTag(tags []string, filters []string) bool {
	return slices.ContainsFunc(filters, func(f string) bool { return slices.Contains(tags, f) })
}
