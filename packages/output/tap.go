package output

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type tapPoint struct {
	ok   bool
	name string
	diag map[string]any
}

type tapFormatter struct {
	w      io.Writer
	points []tapPoint
}

// Format adds one test point per exchange. Failures carry a YAML block.
func (f *tapFormatter) Format(x *Exchange) error {
	p := tapPoint{ok: x.Passed(), name: x.Name}
	if !p.ok {
		p.diag = map[string]any{}
		if x.Err != nil && (x.Response == nil || len(x.Results) == 0) {
			p.diag["message"] = x.Err.Error()
			p.diag["severity"] = "error"
		}
		var failures []string
		for _, r := range x.Results {
			if !r.Passed {
				failures = append(failures, fmt.Sprintf("%s %s: expected %v, got %v", r.Subject, r.Operator, r.Expected, r.Actual))
			}
		}
		if len(failures) > 0 {
			p.diag["failures"] = failures
		}
		if x.Response != nil {
			p.diag["status"] = x.Response.Status
		}
	}
	f.points = append(f.points, p)
	return nil
}

// Flush writes the TAP 13 stream and resets.
func (f *tapFormatter) Flush() error {
	var b strings.Builder
	fmt.Fprintf(&b, "TAP version 13\n1..%d\n", len(f.points))
	for i, p := range f.points {
		status := "ok"
		if !p.ok {
			status = "not ok"
		}
		fmt.Fprintf(&b, "%s %d - %s\n", status, i+1, p.name)
		if len(p.diag) == 0 {
			continue
		}
		doc, err := yaml.Marshal(p.diag)
		if err != nil {
			return fmt.Errorf("encode diagnostics: %w", err)
		}
		b.WriteString("  ---\n")
		for _, line := range strings.Split(strings.TrimRight(string(doc), "\n"), "\n") {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("  ...\n")
	}
	f.points = nil
	_, err := io.WriteString(f.w, b.String())
	return err
}
