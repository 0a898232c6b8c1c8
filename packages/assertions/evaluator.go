package assertions

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
	"github.com/abdul-hamid-achik/courier/packages/schema"
)

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
}

type Evaluator struct {
	response *courier.Response
	bodyJSON gjson.Result
	isJSON   bool
	baseDir  string // schema paths resolve here
}

func NewEvaluator(resp *courier.Response) *Evaluator {
	return NewEvaluatorWithBaseDir(resp, "")
}

func NewEvaluatorWithBaseDir(resp *courier.Response, baseDir string) *Evaluator {
	e := &Evaluator{
		response: resp,
		baseDir:  baseDir,
	}
	raw := resp.Bytes()
	if _, text := resp.Data.(string); (!text || resp.IsJSON()) && len(raw) > 0 && gjson.ValidBytes(raw) {
		e.bodyJSON = gjson.ParseBytes(raw)
		e.isJSON = true
	}
	return e
}

func (e *Evaluator) Evaluate(assertion *Assertion) *Result {
	result := &Result{
		Subject:  assertion.Subject,
		Operator: assertion.Operator.String(),
		Expected: assertion.Expected,
	}

	actual, err := e.getActualValue(assertion.Subject)
	if err != nil {
		result.Passed = false
		result.Message = err.Error()
		return result
	}
	result.Actual = actual

	passed, msg := e.compare(actual, assertion.Operator, assertion.Expected)
	result.Passed = passed
	result.Message = msg

	if assertion.Operator == OpLength {
		result.Actual = computeLength(actual)
	}

	return result
}

func (e *Evaluator) getActualValue(subject string) (any, error) {
	switch {
	case subject == "status":
		return e.response.Status, nil
	case subject == "statusText":
		return e.response.StatusText, nil
	case subject == "duration":
		return e.response.DurationMs(), nil
	case strings.HasPrefix(subject, "header"):
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(subject, "header"), "."))
		if name == "" {
			return e.response.Headers, nil
		}
		return e.response.Header(name), nil
	case strings.HasPrefix(subject, "body"):
		return e.getBodyValue(subject)
	case strings.HasPrefix(subject, "jsonpath"):
		path := strings.TrimSpace(strings.TrimPrefix(subject, "jsonpath"))
		return e.getJSONPathValue(strings.TrimPrefix(path, "."))
	default:
		return e.getBodyValue("body." + subject)
	}
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// convertBracketNotation rewrites items[0].id as items.0.id for gjson.
func convertBracketNotation(path string) string {
	return strings.TrimPrefix(bracketIndex.ReplaceAllString(path, ".$1"), ".")
}

func (e *Evaluator) getBodyValue(subject string) (any, error) {
	path := strings.TrimPrefix(strings.TrimPrefix(subject, "body"), ".")
	if !e.isJSON {
		if path == "" {
			return e.response.String(), nil
		}
		return nil, nil
	}
	if path == "" {
		return e.bodyJSON.Value(), nil
	}

	result := e.bodyJSON.Get(convertBracketNotation(path))
	if !result.Exists() {
		return nil, nil
	}
	return result.Value(), nil
}

func (e *Evaluator) getJSONPathValue(path string) (any, error) {
	if !e.isJSON {
		return nil, fmt.Errorf("response body is not JSON")
	}
	result := e.bodyJSON.Get(convertBracketNotation(path))
	if !result.Exists() {
		return nil, nil
	}
	return result.Value(), nil
}

func negate(passed bool, msg string) (bool, string) {
	if passed {
		return false, msg
	}
	return true, ""
}

func (e *Evaluator) compare(actual any, op Operator, expected any) (bool, string) {
	switch op {
	case OpEquals:
		return e.equals(actual, expected)
	case OpNotEquals:
		passed, _ := e.equals(actual, expected)
		return negate(passed, fmt.Sprintf("expected not to equal %v", expected))
	case OpGreaterThan:
		return e.compareNumeric(actual, expected, ">")
	case OpGreaterOrEqual:
		return e.compareNumeric(actual, expected, ">=")
	case OpLessThan:
		return e.compareNumeric(actual, expected, "<")
	case OpLessOrEqual:
		return e.compareNumeric(actual, expected, "<=")
	case OpContains:
		return e.contains(actual, expected)
	case OpNotContains:
		passed, _ := e.contains(actual, expected)
		return negate(passed, fmt.Sprintf("expected not to contain %v", expected))
	case OpStartsWith:
		return e.startsWith(actual, expected)
	case OpEndsWith:
		return e.endsWith(actual, expected)
	case OpMatches:
		return e.matches(actual, expected)
	case OpExists:
		return e.exists(actual)
	case OpNotExists:
		passed, _ := e.exists(actual)
		return negate(passed, "expected not to exist")
	case OpLength:
		return e.length(actual, expected)
	case OpIncludes:
		return e.includes(actual, expected)
	case OpNotIncludes:
		passed, _ := e.includes(actual, expected)
		return negate(passed, fmt.Sprintf("expected not to include %v", expected))
	case OpIn:
		return e.in(actual, expected)
	case OpNotIn:
		passed, _ := e.in(actual, expected)
		return negate(passed, fmt.Sprintf("expected not to be in %v", expected))
	case OpType:
		return e.typeCheck(actual, expected)
	case OpSchema:
		return e.schema(actual, expected)
	case OpEach:
		return e.each(actual, expected)
	default:
		return false, fmt.Sprintf("unknown operator: %v", op)
	}
}

func (e *Evaluator) equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	if fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func (e *Evaluator) compareNumeric(actual, expected any, op string) (bool, string) {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = actualNum > expectedNum
	case ">=":
		passed = actualNum >= expectedNum
	case "<":
		passed = actualNum < expectedNum
	case "<=":
		passed = actualNum <= expectedNum
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

func (e *Evaluator) contains(actual, expected any) (bool, string) {
	if strings.Contains(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to contain '%v'", actual, expected)
}

func (e *Evaluator) startsWith(actual, expected any) (bool, string) {
	if strings.HasPrefix(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to start with '%v'", actual, expected)
}

func (e *Evaluator) endsWith(actual, expected any) (bool, string) {
	if strings.HasSuffix(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to end with '%v'", actual, expected)
}

func (e *Evaluator) matches(actual, expected any) (bool, string) {
	pattern := fmt.Sprintf("%v", expected)
	pattern = strings.TrimSuffix(strings.TrimPrefix(pattern, "/"), "/")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern: %v", err)
	}
	if re.MatchString(fmt.Sprintf("%v", actual)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to match /%v/", actual, pattern)
}

func (e *Evaluator) exists(actual any) (bool, string) {
	if actual == nil {
		return false, "expected to exist"
	}
	return true, ""
}

// computeLength returns the length of a value, or -1 if it has none.
func computeLength(actual any) int {
	switch v := actual.(type) {
	case string:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	case nil:
		return -1
	}
	rv := reflect.ValueOf(actual)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len()
	default:
		return -1
	}
}

func (e *Evaluator) length(actual, expected any) (bool, string) {
	expectedLen, ok := toInt(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}

	actualLen := computeLength(actual)
	if actualLen == -1 {
		return false, fmt.Sprintf("cannot get length of %T", actual)
	}
	if actualLen == expectedLen {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %d, got %d", expectedLen, actualLen)
}

func (e *Evaluator) includes(actual, expected any) (bool, string) {
	arr, ok := actual.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array, got %T", actual)
	}
	for _, item := range arr {
		if passed, _ := e.equals(item, expected); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected array to include %v", expected)
}

func (e *Evaluator) in(actual, expected any) (bool, string) {
	arr, ok := expected.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array for 'in' operator, got %T", expected)
	}
	for _, item := range arr {
		if passed, _ := e.equals(actual, item); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return reflect.TypeOf(v).String()
	}
}

func (e *Evaluator) typeCheck(actual, expected any) (bool, string) {
	expectedType := fmt.Sprintf("%v", expected)
	actualType := typeName(actual)
	if actualType == expectedType {
		return true, ""
	}
	return false, fmt.Sprintf("expected type %s, got %s", expectedType, actualType)
}

func (e *Evaluator) schema(actual, expected any) (bool, string) {
	v, err := schema.Load(fmt.Sprintf("%v", expected), e.baseDir)
	if err != nil {
		return false, err.Error()
	}
	if err := v.Validate(actual); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// each applies expected to every element. expected is either a plain value
// compared for equality or a map with operator and value keys.
func (e *Evaluator) each(actual, expected any) (bool, string) {
	arr, ok := actual.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array for 'each' operator, got %T", actual)
	}

	op := OpEquals
	want := expected
	if m, isMap := expected.(map[string]any); isMap {
		rawOp, hasOp := m["operator"]
		val, hasVal := m["value"]
		if hasOp && hasVal {
			parsed, err := ParseOperator(fmt.Sprintf("%v", rawOp))
			if err != nil || parsed == OpEach || parsed == OpSchema {
				return false, fmt.Sprintf("unsupported operator in each: %v", rawOp)
			}
			op, want = parsed, val
		}
	}

	for i, item := range arr {
		if passed, msg := e.compare(item, op, want); !passed {
			return false, fmt.Sprintf("item[%d]: %s", i, msg)
		}
	}
	return true, ""
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
	}
	return 0, false
}

func EvaluateAll(resp *courier.Response, assertions []*Assertion) []*Result {
	return EvaluateAllWithBaseDir(resp, assertions, "")
}

func EvaluateAllWithBaseDir(resp *courier.Response, assertions []*Assertion, baseDir string) []*Result {
	evaluator := NewEvaluatorWithBaseDir(resp, baseDir)
	results := make([]*Result, len(assertions))
	for i, a := range assertions {
		results[i] = evaluator.Evaluate(a)
	}
	return results
}
