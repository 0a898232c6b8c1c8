package cancel

import "errors"

// DefaultMessage is the reason text used when a cancellation carries none,
// including every abort that arrives through a Signal.
const DefaultMessage = "canceled"

// Cancel is the reason recorded when an operation is cancelled. It is an
// error so it can travel the rejection path, and IsCancel tells it apart
// from ordinary failures.
type Cancel struct {
	Message string
}

// Error returns the cancellation message.
func (c *Cancel) Error() string {
	if c.Message == "" {
		return DefaultMessage
	}
	return c.Message
}

// String renders the reason the way it is shown to users.
func (c *Cancel) String() string {
	return "Cancel: " + c.Error()
}

// IsCancel reports whether err is, or wraps, a cancellation reason.
func IsCancel(err error) bool {
	var c *Cancel
	return errors.As(err, &c)
}
