package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushEvicts(t *testing.T) {
	rb := New[int](3)
	for i := 0; i < 5; i++ {
		rb.PushBack(i)
	}
	require.Equal(t, 3, rb.Len())
	require.Equal(t, []int{2, 3, 4}, rb.Slice())
	require.Equal(t, 2, rb.PopFront())
	require.Equal(t, []int{3, 4}, rb.Slice())
	rb.PushBack(5)
	rb.PushBack(6)
	require.Equal(t, []int{4, 5, 6}, rb.Slice())
}

func TestZeroCap(t *testing.T) {
	rb := New[string](0)
	rb.PushBack("a")
	require.Equal(t, 0, rb.Len())
	require.Empty(t, rb.Slice())
}

func TestAtOutOfRange(t *testing.T) {
	rb := New[int](2)
	rb.PushBack(1)
	require.Panics(t, func() { rb.At(1) })
}
