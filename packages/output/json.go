package output

import (
	"encoding/json"
	"io"
	"time"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// JSONOutput is the document written by the json format.
type JSONOutput struct {
	Exchanges []JSONExchange `json:"exchanges"`
	Passed    int            `json:"passed"`
	Failed    int            `json:"failed"`
	Time      string         `json:"time"`
}

// JSONExchange is one request in JSONOutput.
type JSONExchange struct {
	Name       string          `json:"name"`
	Method     string          `json:"method,omitempty"`
	URL        string          `json:"url,omitempty"`
	Passed     bool            `json:"passed"`
	Duration   float64         `json:"duration"` // milliseconds
	Error      any             `json:"error,omitempty"` // *courier.Error or a message
	Response   *JSONResponse   `json:"response,omitempty"`
	Assertions []JSONAssertion `json:"assertions,omitempty"`
	Captures   map[string]any  `json:"captures,omitempty"`
}

// JSONResponse carries the response status, headers and data.
type JSONResponse struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers,omitempty"`
	Data       any               `json:"data,omitempty"`
}

// JSONAssertion is one assertion outcome.
type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

type jsonFormatter struct {
	w   io.Writer
	out JSONOutput
}

func (f *jsonFormatter) Format(x *Exchange) error {
	je := JSONExchange{
		Name:     x.Name,
		Method:   x.Method,
		URL:      x.URL,
		Passed:   x.Passed(),
		Duration: float64(x.Duration.Microseconds()) / 1000,
		Captures: x.Captures,
	}
	if x.Err != nil {
		if e, ok := courier.AsError(x.Err); ok {
			je.Error = e
		} else {
			je.Error = x.Err.Error()
		}
	}
	if r := x.Response; r != nil {
		jr := &JSONResponse{Status: r.Status, StatusText: r.StatusText, Headers: map[string]string{}}
		for k := range r.Headers {
			jr.Headers[k] = r.Headers.Get(k)
		}
		switch d := r.Data.(type) {
		case io.Reader:
		case []byte:
			jr.Data = string(d)
		default:
			jr.Data = d
		}
		je.Response = jr
	}
	for _, r := range x.Results {
		je.Assertions = append(je.Assertions, JSONAssertion{
			Subject:  r.Subject,
			Operator: r.Operator,
			Expected: r.Expected,
			Actual:   r.Actual,
			Passed:   r.Passed,
			Message:  r.Message,
		})
	}
	if je.Passed {
		f.out.Passed++
	} else {
		f.out.Failed++
	}
	f.out.Exchanges = append(f.out.Exchanges, je)
	return nil
}

// Flush writes everything formatted so far and resets.
func (f *jsonFormatter) Flush() error {
	if f.out.Exchanges == nil {
		f.out.Exchanges = []JSONExchange{}
	}
	f.out.Time = time.Now().UTC().Format(time.RFC3339)
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	err := enc.Encode(f.out)
	f.out = JSONOutput{}
	return err
}
