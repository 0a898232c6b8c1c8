package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Func computes a value from string arguments.
type Func func(args []string) (any, error)

// Registry maps function names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = funcNow
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["timestampMs"] = funcTimestampMs
	r.funcs["uuid"] = funcUUID
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomEmail"] = funcRandomEmail
	r.funcs["base64"] = funcBase64
	r.funcs["base64Decode"] = funcBase64Decode
	r.funcs["md5"] = funcMD5
	r.funcs["sha256"] = funcSHA256
	r.funcs["urlEncode"] = funcURLEncode
	r.funcs["urlDecode"] = funcURLDecode
	r.funcs["date"] = funcDate
	r.funcs["env"] = funcEnv
}

// Register adds or replaces fn under name.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Names lists the registered functions in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates an expression such as randomString(8). ok is false when
// expr is not a call to a registered function.
func (r *Registry) Call(expr string) (value any, ok bool, err error) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return nil, false, nil
	}

	r.mu.RLock()
	fn, found := r.funcs[matches[1]]
	r.mu.RUnlock()
	if !found {
		return nil, false, nil
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	value, err = fn(args)
	if err != nil {
		return nil, true, fmt.Errorf("%s(): %w", matches[1], err)
	}
	return value, true, nil
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !inQuote && (ch == '"' || ch == '\'') {
			inQuote = true
			quoteChar = ch
		} else if inQuote && ch == quoteChar {
			inQuote = false
			quoteChar = 0
		} else if !inQuote && ch == ',' {
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		} else {
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func intArg(args []string, i int, name string, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%s argument %q is not a valid integer", name, args[i])
	}
	return v, nil
}

func funcNow(_ []string) (any, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func funcTimestamp(_ []string) (any, error) {
	return time.Now().Unix(), nil
}

func funcTimestampMs(_ []string) (any, error) {
	return time.Now().UnixMilli(), nil
}

func funcUUID(_ []string) (any, error) {
	return uuid.New().String(), nil
}

func funcRandom(args []string) (any, error) {
	min, err := intArg(args, 0, "min", 0)
	if err != nil {
		return nil, err
	}
	max, err := intArg(args, 1, "max", 100)
	if err != nil {
		return nil, err
	}
	if max < min {
		return nil, fmt.Errorf("max %d is less than min %d", max, min)
	}
	return rand.Intn(max-min+1) + min, nil
}

func funcRandomString(args []string) (any, error) {
	length, err := intArg(args, 0, "length", 16)
	if err != nil {
		return nil, err
	}
	return randomString(length, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"), nil
}

func funcRandomEmail(_ []string) (any, error) {
	user := randomString(8, "abcdefghijklmnopqrstuvwxyz")
	domain := randomString(6, "abcdefghijklmnopqrstuvwxyz")
	return fmt.Sprintf("%s@%s.com", user, domain), nil
}

func funcBase64(args []string) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0])), nil
}

func funcBase64Decode(args []string) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(args[0])
	if err != nil {
		return nil, err
	}
	return string(decoded), nil
}

func funcMD5(args []string) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	hash := md5.Sum([]byte(args[0]))
	return hex.EncodeToString(hash[:]), nil
}

func funcSHA256(args []string) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	hash := sha256.Sum256([]byte(args[0]))
	return hex.EncodeToString(hash[:]), nil
}

func funcURLEncode(args []string) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	return url.QueryEscape(args[0]), nil
}

func funcURLDecode(args []string) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	return url.QueryUnescape(args[0])
}

func funcDate(args []string) (any, error) {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return time.Now().UTC().Format(format), nil
}

func funcEnv(args []string) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("missing variable name")
	}
	val, ok := os.LookupEnv(args[0])
	if !ok {
		if len(args) >= 2 {
			return args[1], nil
		}
		return nil, fmt.Errorf("environment variable %s is not set", args[0])
	}
	return val, nil
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
