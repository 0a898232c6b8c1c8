package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/courier/packages/future"
)

// Future is the pending result of a request.
type Future = future.Future[*Response]

// Response is a settled exchange. Data holds the transformed body: parsed
// JSON, a string, []byte for arraybuffer, or an io.ReadCloser for stream.
type Response struct {
	Data       any
	Status     int
	StatusText string
	Headers    http.Header
	Config     *Config
	Request    *http.Request
	Duration   time.Duration
}

func (r *Response) Header(key string) string {
	return r.Headers.Get(key)
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "application/json")
}

func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r *Response) IsRedirect() bool {
	return r.Status >= 300 && r.Status < 400
}

func (r *Response) IsClientError() bool {
	return r.Status >= 400 && r.Status < 500
}

func (r *Response) IsServerError() bool {
	return r.Status >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// Bytes renders Data as raw bytes. Parsed values are re-encoded as JSON.
func (r *Response) Bytes() []byte {
	switch v := r.Data.(type) {
	case nil:
		return nil
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	b, err := json.Marshal(r.Data)
	if err != nil {
		return []byte(fmt.Sprint(r.Data))
	}
	return b
}

// String renders Data as text.
func (r *Response) String() string {
	return string(r.Bytes())
}

// Decode unmarshals Data into v.
func (r *Response) Decode(v any) error {
	b := r.Bytes()
	if b == nil {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
