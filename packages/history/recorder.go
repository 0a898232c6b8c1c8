package history

import (
	"context"
	"log/slog"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// EntryFromResponse builds an entry for a completed exchange. Streamed
// bodies are not stored.
func EntryFromResponse(resp *courier.Response) *Entry {
	e := &Entry{
		Status:          resp.Status,
		DurationMs:      resp.DurationMs(),
		ResponseHeaders: resp.Headers,
	}
	if resp.Config != nil {
		e.Method = resp.Config.Method
		e.URL = courier.BuildURL(courier.BuildFullPath(resp.Config.BaseURL, resp.Config.URL), resp.Config.Params, resp.Config.ParamsSerializer)
		e.RequestHeaders = resp.Config.Headers
	}
	if resp.Request != nil {
		e.URL = resp.Request.URL.String()
	}
	switch resp.Data.(type) {
	case string, []byte, nil:
		e.ResponseBody = resp.String()
	default:
		if !isStream(resp.Data) {
			e.ResponseBody = resp.String()
		}
	}
	return e
}

func isStream(v any) bool {
	_, ok := v.(interface{ Read([]byte) (int, error) })
	return ok
}

// EntryFromError builds an entry for a failed exchange.
func EntryFromError(err error) *Entry {
	e := &Entry{Error: err.Error()}
	ce, ok := courier.AsError(err)
	if !ok {
		return e
	}
	if ce.Response != nil {
		e = EntryFromResponse(ce.Response)
		e.Error = err.Error()
	} else if ce.Config != nil {
		e.Method = ce.Config.Method
		e.URL = courier.BuildFullPath(ce.Config.BaseURL, ce.Config.URL)
		e.RequestHeaders = ce.Config.Headers
	}
	e.ErrorCode = ce.Code
	return e
}

// Install registers a response interceptor that records every exchange.
// Recording failures are logged and never fail the request.
func Install(c *courier.Client, store *Store, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	record := func(e *Entry) {
		if e.Method == "" && e.URL == "" {
			return
		}
		if err := store.Record(context.Background(), e); err != nil {
			logger.Warn("failed to record history", "error", err)
		}
	}
	return c.Interceptors.Response.Use(func(resp *courier.Response) (*courier.Response, error) {
		record(EntryFromResponse(resp))
		return resp, nil
	}, func(err error) (*courier.Response, error) {
		record(EntryFromError(err))
		return nil, err
	})
}
