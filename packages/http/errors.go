package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/abdul-hamid-achik/courier/packages/cancel"
)

// ErrorKind classifies a failed request.
type ErrorKind int

const (
	// KindTransport covers network, timeout and protocol failures.
	KindTransport ErrorKind = iota
	// KindValidation marks malformed options, raised before dispatch.
	KindValidation
	// KindCancel marks a request stopped by a token, signal or context.
	KindCancel
	// KindStatus marks a response rejected by ValidateStatus.
	KindStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCancel:
		return "cancel"
	case KindStatus:
		return "status"
	default:
		return "transport"
	}
}

// Machine-readable error codes.
const (
	ErrCodeAborted               = "ECONNABORTED"
	ErrCodeTimedOut              = "ETIMEDOUT"
	ErrCodeJSONParse             = "E_JSON_PARSE"
	ErrCodeBadOption             = "ERR_BAD_OPTION"
	ErrCodeBadOptionValue        = "ERR_BAD_OPTION_VALUE"
	ErrCodeBadRequest            = "ERR_BAD_REQUEST"
	ErrCodeBadResponse           = "ERR_BAD_RESPONSE"
	ErrCodeTooManyRedirects      = "ERR_FR_TOO_MANY_REDIRECTS"
	ErrCodeMaxBodyLengthExceeded = "ERR_FR_MAX_BODY_LENGTH_EXCEEDED"
)

// Kind sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrTransport  = &Error{Kind: KindTransport, Message: "transport error"}
	ErrValidation = &Error{Kind: KindValidation, Message: "validation error"}
	ErrCanceled   = &Error{Kind: KindCancel, Message: "canceled"}
	ErrStatus     = &Error{Kind: KindStatus, Message: "status validation error"}
)

// Error is returned for every failed request. It carries the config that
// produced it and, when available, the request and the response.
type Error struct {
	Kind     ErrorKind
	Message  string
	Code     string
	Config   *Config
	Request  *http.Request
	Response *Response
	Err      error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against one of the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport, ErrValidation, ErrCanceled, ErrStatus:
		return e.Kind == target.(*Error).Kind
	}
	return false
}

// MarshalJSON renders the fields useful in logs and CLI output.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"message": e.Error(),
		"name":    "Error",
		"kind":    e.Kind.String(),
	}
	if e.Code != "" {
		out["code"] = e.Code
	}
	if e.Response != nil {
		out["status"] = e.Response.Status
	}
	if e.Config != nil {
		out["method"] = e.Config.Method
		out["url"] = e.Config.URL
	}
	return json.Marshal(out)
}

// newError builds an error of the given kind.
func newError(kind ErrorKind, message string, cfg *Config, code string, req *http.Request, resp *Response) *Error {
	return &Error{
		Kind:     kind,
		Message:  message,
		Code:     code,
		Config:   cfg,
		Request:  req,
		Response: resp,
	}
}

// enhanceError attaches request context to err. An *Error is filled in
// where empty and returned as-is; anything else is wrapped as a transport
// error, or a cancellation if it carries a cancel reason.
func enhanceError(err error, cfg *Config, code string, req *http.Request, resp *Response) *Error {
	var e *Error
	if errors.As(err, &e) {
		if e.Config == nil {
			e.Config = cfg
		}
		if e.Code == "" {
			e.Code = code
		}
		if e.Request == nil {
			e.Request = req
		}
		if e.Response == nil {
			e.Response = resp
		}
		return e
	}
	kind := KindTransport
	if cancel.IsCancel(err) {
		kind = KindCancel
	}
	return &Error{
		Kind:     kind,
		Message:  err.Error(),
		Code:     code,
		Config:   cfg,
		Request:  req,
		Response: resp,
		Err:      err,
	}
}

// newCancelError wraps a cancellation reason.
func newCancelError(reason *cancel.Cancel, cfg *Config, req *http.Request) *Error {
	return &Error{
		Kind:    KindCancel,
		Message: reason.Error(),
		Config:  cfg,
		Request: req,
		Err:     reason,
	}
}

// AsError returns the *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsError reports whether err came out of a request pipeline.
func IsError(err error) bool {
	_, ok := AsError(err)
	return ok
}

// IsCancel reports whether err is a cancellation.
func IsCancel(err error) bool {
	return cancel.IsCancel(err)
}
