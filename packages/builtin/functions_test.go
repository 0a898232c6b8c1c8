package builtin

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Call(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		expr     string
		expected any
	}{
		{`base64("hello")`, "aGVsbG8="},
		{`base64Decode('aGVsbG8=')`, "hello"},
		{`md5("a")`, "0cc175b9c0f1b6a831c399e269772661"},
		{`urlEncode("a b&c")`, "a+b%26c"},
		{`urlDecode("a+b%26c")`, "a b&c"},
		{`random(5, 5)`, 5},
		{`env("COURIER_TEST_UNSET_VAR", "fallback")`, "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			value, ok, err := r.Call(tt.expr)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestRegistry_CallUUID(t *testing.T) {
	value, ok, err := NewRegistry().Call("uuid()")

	require.NoError(t, err)
	require.True(t, ok)
	_, parseErr := uuid.Parse(value.(string))
	assert.NoError(t, parseErr)
}

func TestRegistry_CallErrors(t *testing.T) {
	r := NewRegistry()

	_, ok, err := r.Call("unknown()")
	assert.False(t, ok)
	assert.NoError(t, err)

	_, ok, err = r.Call("notACall")
	assert.False(t, ok)
	assert.NoError(t, err)

	_, ok, err = r.Call(`random("a", 3)`)
	assert.True(t, ok)
	assert.ErrorContains(t, err, "not a valid integer")

	_, _, err = r.Call(`env("COURIER_TEST_UNSET_VAR")`)
	assert.ErrorContains(t, err, "is not set")
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("answer", func([]string) (any, error) { return 42, nil })

	value, ok, err := r.Call("answer()")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, value)
	assert.Contains(t, r.Names(), "answer")
}

func TestRandomString_Length(t *testing.T) {
	value, _, err := NewRegistry().Call("randomString(12)")
	require.NoError(t, err)
	assert.Len(t, value.(string), 12)
}
