package ringchan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceive(t *testing.T) {
	r := New[int](4)
	for i := 0; i < 3; i++ {
		assert.False(t, r.Send(i))
	}
	assert.Equal(t, 0, <-r.C())
	assert.Equal(t, 1, <-r.C())
	assert.Equal(t, 2, <-r.C())
}

func TestSendDropsOldestWhenFull(t *testing.T) {
	r := New[int](2)
	assert.False(t, r.Send(1))
	assert.False(t, r.Send(2))
	assert.True(t, r.Send(3), "full buffer drops the oldest")

	assert.Equal(t, 2, <-r.C())
	assert.Equal(t, 3, <-r.C())
}

func TestCloseEndsRange(t *testing.T) {
	r := New[string](2)
	r.Send("a")
	r.Close()

	var got []string
	for v := range r.C() {
		got = append(got, v)
	}
	assert.Equal(t, []string{"a"}, got)

	// Sends after close are silent no-ops, and Close is idempotent.
	assert.False(t, r.Send("b"))
	r.Close()
}

func TestZeroCapacityPanics(t *testing.T) {
	require.Panics(t, func() { New[int](0) })
}
