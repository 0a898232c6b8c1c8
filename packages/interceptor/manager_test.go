package interceptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func identity(v int) (int, error) { return v, nil }

func TestManager_UseReturnsSequentialIDs(t *testing.T) {
	m := NewManager[int]()

	assert.Equal(t, 0, m.Use(identity, nil))
	assert.Equal(t, 1, m.Use(identity, nil))
	assert.Equal(t, 2, m.Use(nil, nil))
}

func TestManager_EjectKeepsIndices(t *testing.T) {
	m := NewManager[int]()
	m.Use(func(v int) (int, error) { return v + 1, nil }, nil)
	id := m.Use(func(v int) (int, error) { return v + 10, nil }, nil)
	m.Use(func(v int) (int, error) { return v + 100, nil }, nil)

	m.Eject(id)
	m.Eject(id)
	m.Eject(42)
	m.Eject(-1)

	total := 0
	m.ForEach(func(h *Handler[int]) {
		v, err := h.Fulfilled(0)
		require.NoError(t, err)
		total += v
	})
	assert.Equal(t, 101, total)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 3, m.Use(identity, nil))
}

func TestManager_Options(t *testing.T) {
	m := NewManager[int]()
	m.Use(identity, nil, Options[int]{
		Synchronous: true,
		RunWhen:     func(v int) bool { return v > 0 },
	})

	var got *Handler[int]
	m.ForEach(func(h *Handler[int]) { got = h })
	require.NotNil(t, got)
	assert.True(t, got.Synchronous)
	assert.True(t, got.RunWhen(1))
	assert.False(t, got.RunWhen(0))
}

func TestManager_Clear(t *testing.T) {
	m := NewManager[int]()
	m.Use(identity, nil)
	m.Clear()
	assert.Zero(t, m.Len())
}

func TestManager_ForEachAllowsReentry(t *testing.T) {
	m := NewManager[int]()
	m.Use(identity, nil)
	m.ForEach(func(*Handler[int]) {
		m.Use(identity, nil)
	})
	assert.Equal(t, 2, m.Len())
}

func TestManager_ForEachVisitsLiveEntriesInOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewManager[int]()
		var live []int
		next := 0

		ops := rapid.SliceOfN(rapid.IntRange(-1, 20), 0, 50).Draw(t, "ops")
		for _, op := range ops {
			if op < 0 || len(live) == 0 {
				id := m.Use(identity, nil, Options[int]{RunWhen: tagged(next)})
				assert.Equal(t, next, id)
				next++
				live = append(live, id)
				continue
			}
			victim := live[op%len(live)]
			m.Eject(victim)
			live = remove(live, victim)
		}

		var visited []int
		m.ForEach(func(h *Handler[int]) {
			visited = append(visited, idOf(h))
		})
		if len(live) == 0 {
			assert.Empty(t, visited)
			return
		}
		assert.Equal(t, live, visited)
	})
}

// tagged makes a handler's RunWhen answer true only for its own id.
func tagged(id int) func(int) bool {
	return func(probe int) bool { return probe == id }
}

func idOf(h *Handler[int]) int {
	for i := 0; ; i++ {
		if h.RunWhen(i) {
			return i
		}
	}
}

func remove(ids []int, id int) []int {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
