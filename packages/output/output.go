package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/courier/packages/assertions"
	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// Exchange is one request as reported to the user.
type Exchange struct {
	Name     string
	Method   string
	URL      string
	Response *courier.Response
	Err      error
	Results  []*assertions.Result
	Captures map[string]any
	Duration time.Duration
}

// NewExchange describes a settled request. Either resp or err is set; a
// status error still carries its response.
func NewExchange(name string, resp *courier.Response, err error) *Exchange {
	x := &Exchange{Name: name, Response: resp, Err: err}
	if x.Response == nil {
		if e, ok := courier.AsError(err); ok {
			x.Response = e.Response
			if e.Config != nil {
				x.Method, x.URL = e.Config.Method, courier.BuildFullPath(e.Config.BaseURL, e.Config.URL)
			}
		}
	}
	if x.Response != nil {
		x.Duration = x.Response.Duration
		if x.Response.Config != nil {
			x.Method, x.URL = x.Response.Config.Method, courier.BuildFullPath(x.Response.Config.BaseURL, x.Response.Config.URL)
		}
	}
	if x.Name == "" {
		x.Name = fmt.Sprintf("%s %s", strings.ToUpper(x.Method), x.URL)
	}
	return x
}

// Passed reports whether the request settled and every assertion held.
// A status error counts as passed when assertions were given, so that
// "status == 404" can be checked.
func (x *Exchange) Passed() bool {
	if x.Err != nil && (x.Response == nil || len(x.Results) == 0) {
		return false
	}
	return len(assertions.Failures(x.Results)) == 0
}

// Formatter renders exchanges. Formats that need the whole run, such as
// JUnit, write on Flush.
type Formatter interface {
	Format(x *Exchange) error
	Flush() error
}

// Formats lists the names accepted by New.
var Formats = []string{"pretty", "json", "raw", "junit", "tap"}

type options struct {
	w       io.Writer
	verbose bool
	noColor bool
	suite   string
}

// Option configures a formatter.
type Option func(*options)

func WithWriter(w io.Writer) Option {
	return func(o *options) { o.w = w }
}

// WithVerbose includes request and response headers.
func WithVerbose(v bool) Option {
	return func(o *options) { o.verbose = v }
}

func WithNoColor(nc bool) Option {
	return func(o *options) { o.noColor = nc }
}

// WithSuite names the JUnit test suite.
func WithSuite(name string) Option {
	return func(o *options) { o.suite = name }
}

// New returns the formatter registered under format.
func New(format string, opts ...Option) (Formatter, error) {
	o := &options{w: os.Stdout, suite: "courier"}
	for _, opt := range opts {
		opt(o)
	}
	switch format {
	case "", "pretty":
		return newConsole(o), nil
	case "json":
		return &jsonFormatter{w: o.w}, nil
	case "raw":
		return &rawFormatter{w: o.w}, nil
	case "junit":
		return &junitFormatter{w: o.w, suite: o.suite}, nil
	case "tap":
		return &tapFormatter{w: o.w}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want one of %v)", format, Formats)
}

type rawFormatter struct {
	w io.Writer
}

// Format writes the body bytes unchanged.
func (f *rawFormatter) Format(x *Exchange) error {
	if x.Response == nil {
		return x.Err
	}
	_, err := f.w.Write(x.Response.Bytes())
	return err
}

func (f *rawFormatter) Flush() error { return nil }
