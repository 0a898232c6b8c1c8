package sse

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// ErrStop ends Stream cleanly when returned by a handler.
var ErrStop = errors.New("sse: stop")

// Event is one dispatched event. Type is "message" when the stream names
// none.
type Event struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"event"`
	Data  string `json:"data"`
	Retry int    `json:"retry,omitempty"` // milliseconds
}

// Reader decodes the text/event-stream format.
type Reader struct {
	scanner     *bufio.Scanner
	lastEventID string
}

func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64<<10), 1<<20)
	return &Reader{scanner: s}
}

// LastEventID is the id carried over from the most recent event that set one.
func (r *Reader) LastEventID() string {
	return r.lastEventID
}

// Next returns the next event, or io.EOF when the stream ends. A trailing
// event without a blank line is discarded.
func (r *Reader) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		hasData bool
	)
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")
		if line == "" {
			if !hasData {
				ev = Event{}
				continue
			}
			ev.Data = strings.Join(data, "\n")
			ev.ID = r.lastEventID
			if ev.Type == "" {
				ev.Type = "message"
			}
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Type = value
		case "data":
			data = append(data, value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastEventID = value
			}
		case "retry":
			if n, err := strconv.Atoi(value); err == nil && n >= 0 {
				ev.Retry = n
			}
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// Stream sends cfg through client as a streamed request and calls handle
// for each event until the stream ends, ctx is done, or handle fails.
func Stream(ctx context.Context, client *courier.Client, cfg *courier.Config, handle func(Event) error) error {
	req := courier.MergeConfig(&courier.Config{
		Headers: courier.Header{
			"Accept":        "text/event-stream",
			"Cache-Control": "no-cache",
		},
	}, cfg)
	req.ResponseType = courier.ResponseTypeStream
	if req.Method == "" {
		req.Method = "get"
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		return err
	}
	body, ok := resp.Data.(io.ReadCloser)
	if !ok {
		return fmt.Errorf("sse: response body is not a stream")
	}
	defer body.Close()

	if ct := resp.Headers.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return fmt.Errorf("sse: unexpected content type %q", ct)
	}

	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	r := NewReader(body)
	for {
		ev, err := r.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := handle(ev); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}
