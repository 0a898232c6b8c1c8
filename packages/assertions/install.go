package assertions

import (
	"fmt"
	"strings"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// FailedError reports the assertions a response did not satisfy.
type FailedError struct {
	Response *courier.Response
	Failed   []*Result
}

func (e *FailedError) Error() string {
	msgs := make([]string, len(e.Failed))
	for i, r := range e.Failed {
		msgs[i] = fmt.Sprintf("%s %s: %s", r.Subject, r.Operator, r.Message)
	}
	return fmt.Sprintf("%d assertion(s) failed: %s", len(e.Failed), strings.Join(msgs, "; "))
}

// Failures returns the results that did not pass.
func Failures(results []*Result) []*Result {
	var failed []*Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Install registers a response interceptor that rejects with a
// *FailedError when any assertion fails.
func Install(c *courier.Client, baseDir string, assertions ...*Assertion) int {
	return c.Interceptors.Response.Use(func(resp *courier.Response) (*courier.Response, error) {
		if failed := Failures(EvaluateAllWithBaseDir(resp, assertions, baseDir)); len(failed) > 0 {
			return nil, &FailedError{Response: resp, Failed: failed}
		}
		return resp, nil
	}, nil)
}
