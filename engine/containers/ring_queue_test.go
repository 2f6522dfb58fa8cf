package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFIFO(t *testing.T) {
	q := NewRingQueue[int](2)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	require.ErrorIs(t, q.Enqueue(3), ErrQueueFull)

	v, err := q.Peek()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	require.NoError(t, q.Enqueue(3))

	v, _ = q.Dequeue()
	assert.Equal(t, 2, v)
	v, _ = q.Dequeue()
	assert.Equal(t, 3, v)

	_, err = q.Dequeue()
	require.ErrorIs(t, err, ErrQueueEmpty)
}

func TestRingQueueGrowKeepsOrder(t *testing.T) {
	q := NewRingQueue[string](3)
	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(s))
	}
	_, _ = q.Dequeue()
	require.NoError(t, q.Enqueue("d"))
	require.True(t, q.IsFull())

	q.Grow()
	require.NoError(t, q.Enqueue("e"))
	assert.Equal(t, 4, q.Len())

	var got []string
	for !q.IsEmpty() {
		v, err := q.Dequeue()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []string{"b", "c", "d", "e"}, got)
}
