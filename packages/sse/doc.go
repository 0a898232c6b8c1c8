// Package sse reads Server-Sent Events from streamed courier responses.
//
//	err := sse.Stream(ctx, client, &courier.Config{URL: "/events"}, func(e sse.Event) error {
//		fmt.Println(e.Type, e.Data)
//		return nil
//	})
//
// Returning ErrStop from the handler ends the stream without an error.
package sse
