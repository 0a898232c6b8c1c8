package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/tidwall/pretty"
)

// formatValue summarizes v for one-line display.
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type console struct {
	w       io.Writer
	verbose bool
	noColor bool

	green, red, yellow, cyan, bold, dim *color.Color
}

func newConsole(o *options) *console {
	c := &console{w: o.w, verbose: o.verbose, noColor: o.noColor}
	paint := func(attrs ...color.Attribute) *color.Color {
		p := color.New(attrs...)
		if o.noColor {
			p.DisableColor()
		}
		return p
	}
	c.green = paint(color.FgGreen)
	c.red = paint(color.FgRed)
	c.yellow = paint(color.FgYellow)
	c.cyan = paint(color.FgCyan)
	c.bold = paint(color.Bold)
	c.dim = paint(color.Faint)
	return c
}

func (c *console) Format(x *Exchange) error {
	resp := x.Response
	if resp == nil {
		fmt.Fprintf(c.w, "%s %s %s\n", c.red.Sprint("✗"), x.Name, c.red.Sprintf("(%v)", x.Err))
		return nil
	}

	status := c.green
	switch {
	case resp.Status >= 500:
		status = c.red
	case resp.Status >= 400:
		status = c.yellow
	case resp.Status >= 300:
		status = c.cyan
	}
	fmt.Fprintf(c.w, "%s %s %s\n",
		c.bold.Sprint(x.Name),
		status.Sprintf("%d %s", resp.Status, resp.StatusText),
		c.dim.Sprintf("(%dms)", x.Duration.Milliseconds()))

	if c.verbose {
		if resp.Request != nil {
			c.headers("> ", resp.Request.Header)
		}
		c.headers("< ", resp.Headers)
	}

	if body := c.body(resp.Data); body != "" {
		fmt.Fprintln(c.w, body)
	}

	for _, r := range x.Results {
		if r.Passed {
			if c.verbose {
				fmt.Fprintf(c.w, "  %s %s %s\n", c.green.Sprint("✓"), r.Subject, r.Operator)
			}
			continue
		}
		fmt.Fprintf(c.w, "  %s %s %s\n", c.red.Sprint("✗"), r.Subject, r.Operator)
		fmt.Fprintf(c.w, "      Expected: %s\n", formatValue(r.Expected, 100))
		fmt.Fprintf(c.w, "      Actual:   %s\n", formatValue(r.Actual, 100))
		if r.Message != "" {
			fmt.Fprintf(c.w, "      %s\n", r.Message)
		}
	}
	if n := len(x.Results); n > 0 {
		failed := 0
		for _, r := range x.Results {
			if !r.Passed {
				failed++
			}
		}
		summary := c.green.Sprintf("%d passed", n-failed)
		if failed > 0 {
			summary = c.red.Sprintf("%d failed", failed) + ", " + summary
		}
		fmt.Fprintf(c.w, "Assertions: %s\n", summary)
	}

	if len(x.Captures) > 0 {
		names := make([]string, 0, len(x.Captures))
		for name := range x.Captures {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(c.w, c.bold.Sprint("Captures:"))
		for _, name := range names {
			fmt.Fprintf(c.w, "  %s = %s\n", name, formatValue(x.Captures[name], 200))
		}
	}
	return nil
}

func (c *console) headers(prefix string, h map[string][]string) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(c.w, "%s%s: %s\n", c.dim.Sprint(prefix), c.cyan.Sprint(k), strings.Join(h[k], ", "))
	}
}

// body renders parsed JSON indented, colored unless disabled.
func (c *console) body(data any) string {
	var raw []byte
	switch v := data.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(v))
	case io.Reader:
		return "<stream>"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		raw = b
	}
	out := pretty.Pretty(raw)
	if !c.noColor && !color.NoColor {
		out = pretty.Color(out, nil)
	}
	return strings.TrimRight(string(out), "\n")
}

func (c *console) Flush() error { return nil }
