package future

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SettlesOnce(t *testing.T) {
	f := New(func(resolve func(int), reject func(error)) {
		resolve(1)
		resolve(2)
		reject(errors.New("late"))
	})

	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.True(t, f.Settled())
}

func TestThen_PassesThroughNilHandlers(t *testing.T) {
	boom := errors.New("boom")

	v, err := Then(Resolved(5), nil, nil).Wait()
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	_, err = Then(Rejected[int](boom), nil, nil).Wait()
	assert.ErrorIs(t, err, boom)
}

func TestThen_RejectedHandlerCanRecover(t *testing.T) {
	f := Then(Rejected[string](errors.New("boom")), nil, func(err error) (string, error) {
		return "recovered: " + err.Error(), nil
	})

	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, "recovered: boom", v)
}

func TestThen_RejectionSkipsFulfilledHandlers(t *testing.T) {
	called := false
	f := Then(Rejected[int](errors.New("first")), func(v int) (int, error) {
		called = true
		return v, nil
	}, nil)
	f = Then(f, nil, func(err error) (int, error) {
		return 0, errors.New("second: " + err.Error())
	})

	_, err := f.Wait()
	assert.EqualError(t, err, "second: first")
	assert.False(t, called)
}

func TestThen_RunsAfterCallerReturns(t *testing.T) {
	gate := make(chan struct{})
	src := New(func(resolve func(int), _ func(error)) {
		go func() {
			<-gate
			resolve(1)
		}()
	})
	f := Then(src, func(v int) (int, error) { return v + 1, nil }, nil)
	assert.False(t, f.Settled())

	close(gate)
	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMap_ChangesType(t *testing.T) {
	f := Map(Resolved(3), func(v int) (string, error) {
		return string(rune('a' + v)), nil
	})

	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, "d", v)
}

func TestFlatMap(t *testing.T) {
	f := FlatMap(Resolved(2), func(v int) *Future[int] {
		return Resolved(v * 10)
	})

	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 20, v)
}

func TestAll(t *testing.T) {
	t.Run("keeps input order", func(t *testing.T) {
		slow := New(func(resolve func(int), _ func(error)) {
			go func() {
				time.Sleep(10 * time.Millisecond)
				resolve(1)
			}()
		})
		vs, err := All(slow, Resolved(2), Resolved(3)).Wait()
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, vs)
	})

	t.Run("rejects on first error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := All(Resolved(1), Rejected[int](boom)).Wait()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty", func(t *testing.T) {
		vs, err := All[int]().Wait()
		require.NoError(t, err)
		assert.Empty(t, vs)
	})
}

func TestAwait_ContextDone(t *testing.T) {
	never := New(func(func(int), func(error)) {})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := never.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
