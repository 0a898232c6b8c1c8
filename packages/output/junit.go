package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// JUnitTestSuites is the root element.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite holds the checks made against one request.
type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase is one assertion, or the request itself when none were given.
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitProblem `xml:"failure,omitempty"`
	Error     *JUnitProblem `xml:"error,omitempty"`
}

// JUnitProblem is the body of a failure or error element.
type JUnitProblem struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

type junitFormatter struct {
	w      io.Writer
	suite  string
	suites []JUnitTestSuite
}

func (f *junitFormatter) Format(x *Exchange) error {
	s := JUnitTestSuite{
		Name:      x.Name,
		Time:      x.Duration.Seconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if x.Err != nil && (x.Response == nil || len(x.Results) == 0) {
		s.Errors++
		s.TestCases = append(s.TestCases, JUnitTestCase{
			Name:      "request",
			ClassName: x.Name,
			Time:      s.Time,
			Error:     &JUnitProblem{Message: x.Err.Error(), Type: "RequestError"},
		})
	} else if len(x.Results) == 0 {
		s.TestCases = append(s.TestCases, JUnitTestCase{Name: "request", ClassName: x.Name, Time: s.Time})
	}

	for _, r := range x.Results {
		tc := JUnitTestCase{Name: r.Subject + " " + r.Operator, ClassName: x.Name}
		if !r.Passed {
			s.Failures++
			tc.Failure = &JUnitProblem{
				Message: "assertion failed",
				Type:    "AssertionError",
				Content: fmt.Sprintf("expected %v, got %v. %s", r.Expected, r.Actual, r.Message),
			}
		}
		s.TestCases = append(s.TestCases, tc)
	}
	s.Tests = len(s.TestCases)
	f.suites = append(f.suites, s)
	return nil
}

// Flush writes the accumulated XML document and resets.
func (f *junitFormatter) Flush() error {
	root := JUnitTestSuites{Name: f.suite, TestSuites: f.suites}
	for _, s := range f.suites {
		root.Tests += s.Tests
		root.Failures += s.Failures
		root.Errors += s.Errors
		root.Time += s.Time
	}
	f.suites = nil

	if _, err := io.WriteString(f.w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f.w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return err
	}
	_, err := io.WriteString(f.w, "\n")
	return err
}
