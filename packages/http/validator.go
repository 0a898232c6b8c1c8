package http

import (
	"fmt"
	"sort"
)

// Transitional options toggle compatibility behaviors of the default
// transforms and adapters.
type Transitional map[string]any

// Transitional option names.
const (
	SilentJSONParsing   = "silentJSONParsing"
	ForcedJSONParsing   = "forcedJSONParsing"
	ClarifyTimeoutError = "clarifyTimeoutError"
)

// Flag returns the boolean option name, or def when it is unset.
func (t Transitional) Flag(name string, def bool) bool {
	if b, ok := t[name].(bool); ok {
		return b
	}
	return def
}

// OptionValidator checks one option value. It returns "" when the value is
// acceptable, otherwise the expected type ("a boolean").
type OptionValidator func(value any) string

// Boolean accepts bool values.
func Boolean(value any) string {
	if _, ok := value.(bool); ok {
		return ""
	}
	return "a boolean"
}

// Number accepts Go numeric values.
func Number(value any) string {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return ""
	}
	return "a number"
}

// String accepts string values.
func String(value any) string {
	if _, ok := value.(string); ok {
		return ""
	}
	return "a string"
}

var transitionalSchema = map[string]OptionValidator{
	SilentJSONParsing:   Boolean,
	ForcedJSONParsing:   Boolean,
	ClarifyTimeoutError: Boolean,
}

// AssertOptions validates options against schema. A nil value always
// passes. Keys absent from schema fail unless allowUnknown is set.
func AssertOptions(options map[string]any, schema map[string]OptionValidator, allowUnknown bool) error {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, opt := range keys {
		validate, ok := schema[opt]
		if !ok {
			if allowUnknown {
				continue
			}
			return &Error{
				Kind:    KindValidation,
				Code:    ErrCodeBadOption,
				Message: fmt.Sprintf("Unknown option %s", opt),
			}
		}
		value := options[opt]
		if value == nil {
			continue
		}
		if want := validate(value); want != "" {
			return &Error{
				Kind:    KindValidation,
				Code:    ErrCodeBadOptionValue,
				Message: fmt.Sprintf("option %s must be %s", opt, want),
			}
		}
	}
	return nil
}

func validateTransitional(cfg *Config) error {
	if cfg.Transitional == nil {
		return nil
	}
	if err := AssertOptions(cfg.Transitional, transitionalSchema, false); err != nil {
		e := err.(*Error)
		e.Config = cfg
		return e
	}
	return nil
}
