package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/abdul-hamid-achik/courier/packages/assertions"
	"github.com/abdul-hamid-achik/courier/packages/capture"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
	"github.com/abdul-hamid-achik/courier/packages/output"
)

// checks are what a command verifies and extracts from each response.
type checks struct {
	assertions []*assertions.Assertion
	captures   []*capture.Capture
	baseDir    string
}

func parseChecks(asserts, captures []string, schemaPath, baseDir string) (*checks, error) {
	c := &checks{baseDir: baseDir}
	for _, expr := range asserts {
		a, err := assertions.Parse(expr)
		if err != nil {
			return nil, withExit(ExitUsageError, err)
		}
		c.assertions = append(c.assertions, a)
	}
	if schemaPath != "" {
		c.assertions = append(c.assertions, &assertions.Assertion{
			Subject:  "body",
			Operator: assertions.OpSchema,
			Expected: schemaPath,
		})
	}
	for _, spec := range captures {
		cp, err := capture.Parse(spec)
		if err != nil {
			return nil, withExit(ExitUsageError, err)
		}
		c.captures = append(c.captures, cp)
	}
	return c, nil
}

// exchange sends cfg and evaluates c against whatever response came back.
// Captured values are published to the session resolver under source.
func (s *session) exchange(ctx context.Context, name, source string, cfg *courier.Config, c *checks) *output.Exchange {
	resp, err := s.client.Do(ctx, cfg)
	x := output.NewExchange(name, resp, err)
	if x.Response == nil || c == nil {
		return x
	}

	x.Results = assertions.EvaluateAllWithBaseDir(x.Response, c.assertions, c.baseDir)
	if len(c.captures) > 0 {
		x.Captures = capture.ExtractAll(x.Response, c.captures)
		for k, v := range x.Captures {
			s.resolver.SetCapture(source, k, v)
		}
	}
	logger.Debug("exchange settled", "name", x.Name, "status", x.Response.Status, "passed", x.Passed())
	return x
}

// outputFlags select the formatter for exchange reports.
type outputFlags struct {
	format string
	file   string
}

func (o *outputFlags) formatter(stdout io.Writer, suite string) (output.Formatter, func() error, error) {
	w := stdout
	closeFn := func() error { return nil }
	if o.file != "" {
		f, err := os.Create(o.file)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot create output file: %w", err)
		}
		w = f
		closeFn = f.Close
	}

	f, err := output.New(o.format,
		output.WithWriter(w),
		output.WithVerbose(verboseFlag > 0),
		output.WithNoColor(noColorFlag || o.file != ""),
		output.WithSuite(suite),
	)
	if err != nil {
		_ = closeFn()
		return nil, nil, withExit(ExitUsageError, err)
	}
	return f, closeFn, nil
}

// settle maps a finished batch of exchanges to the command's result.
func settle(exchanges []*output.Exchange) error {
	for _, x := range exchanges {
		if x.Passed() {
			continue
		}
		if x.Response == nil {
			if e, ok := courier.AsError(x.Err); ok && e.Kind == courier.KindTransport {
				return withExit(ExitNetworkError, nil)
			}
		}
		return withExit(ExitCheckFailure, nil)
	}
	return nil
}
