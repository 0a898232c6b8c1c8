package assertions

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Assertion checks one property of a response, written as
// "subject operator expected", e.g. "status == 200" or
// "body.items length 3".
type Assertion struct {
	Subject  string
	Operator Operator
	Expected any
}

type Operator int

const (
	OpEquals Operator = iota
	OpNotEquals
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpContains
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpMatches
	OpExists
	OpNotExists
	OpLength
	OpIncludes
	OpNotIncludes
	OpIn
	OpNotIn
	OpType
	OpEach
	OpSchema
)

var operatorNames = map[Operator]string{
	OpEquals:         "==",
	OpNotEquals:      "!=",
	OpGreaterThan:    ">",
	OpGreaterOrEqual: ">=",
	OpLessThan:       "<",
	OpLessOrEqual:    "<=",
	OpContains:       "contains",
	OpNotContains:    "!contains",
	OpStartsWith:     "startsWith",
	OpEndsWith:       "endsWith",
	OpMatches:        "matches",
	OpExists:         "exists",
	OpNotExists:      "!exists",
	OpLength:         "length",
	OpIncludes:       "includes",
	OpNotIncludes:    "!includes",
	OpIn:             "in",
	OpNotIn:          "!in",
	OpType:           "type",
	OpEach:           "each",
	OpSchema:         "schema",
}

func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return "unknown"
}

// ParseOperator accepts operator names case-insensitively.
func ParseOperator(s string) (Operator, error) {
	for op, name := range operatorNames {
		if strings.EqualFold(name, s) {
			return op, nil
		}
	}
	return OpEquals, fmt.Errorf("unknown operator: %s", s)
}

// Parse reads an assertion expression. The expected value is decoded as a
// YAML flow scalar or sequence, so 200 is a number, [a, b] a list and
// "x y" a quoted string.
func Parse(expr string) (*Assertion, error) {
	fields := strings.Fields(expr)
	if len(fields) < 2 {
		return nil, fmt.Errorf("invalid assertion %q: expected \"subject operator [value]\"", expr)
	}

	op, err := ParseOperator(fields[1])
	if err != nil {
		return nil, fmt.Errorf("invalid assertion %q: %w", expr, err)
	}

	a := &Assertion{Subject: fields[0], Operator: op}
	if op == OpExists || op == OpNotExists {
		return a, nil
	}

	// keep the raw remainder so quoted values retain inner spacing
	rest := strings.TrimSpace(expr)
	rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))
	rest = strings.TrimSpace(rest[len(fields[1]):])
	if rest == "" {
		return nil, fmt.Errorf("invalid assertion %q: missing expected value", expr)
	}

	a.Expected, err = parseExpected(rest)
	if err != nil {
		return nil, fmt.Errorf("invalid assertion %q: %w", expr, err)
	}
	return a, nil
}

func parseExpected(raw string) (any, error) {
	// regex literals and bare paths are kept verbatim
	if strings.HasPrefix(raw, "/") {
		return raw, nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}
