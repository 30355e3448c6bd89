package datastructures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkChain verifies the structural invariants of d.
func checkChain[T any](t *testing.T, d *Deque[T]) {
	t.Helper()
	require.NotNil(t, d.head)
	require.NotNil(t, d.tail)
	require.Nil(t, d.head.prev)
	require.Nil(t, d.tail.next)

	total := 0
	var prev *block[T]
	for b := d.head; b != nil; b = b.next {
		require.True(t, b.prev == prev, "broken prev link")
		require.True(t, b.owner == d, "block not owned by deque")
		require.Less(t, b.size, d.blockSize)
		if d.head != d.tail {
			require.Positive(t, b.size, "empty block in multi-block chain")
		}
		total += b.size
		prev = b
	}
	require.True(t, prev == d.tail, "tail is not the last block")
	require.Equal(t, total, d.length)
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestNewDeque(t *testing.T) {
	d := NewDeque[int]()
	assert.True(t, d.Empty())
	assert.Equal(t, 0, d.Len())
	assert.Equal(t, DefaultBlockSize, d.BlockSize())
	assert.Equal(t, 1, d.Blocks())
	assert.True(t, d.Begin().Equal(d.End()))
	checkChain(t, d)

	assert.Panics(t, func() { NewDequeSize[int](1) })
}

func TestPushAndPop(t *testing.T) {
	d := NewDequeSize[int](4)
	for i := 1; i <= 5; i++ {
		d.PushBack(i)
	}
	for i := 0; i >= -4; i-- {
		d.PushFront(i)
	}
	checkChain(t, d)
	assert.Equal(t, seq(-4, 5), d.Values())

	front, err := d.PopFront()
	require.NoError(t, err)
	assert.Equal(t, -4, front)

	back, err := d.PopBack()
	require.NoError(t, err)
	assert.Equal(t, 5, back)

	assert.Equal(t, seq(-3, 4), d.Values())
	assert.Equal(t, 8, d.Size())
	checkChain(t, d)

	for !d.Empty() {
		_, err := d.PopBack()
		require.NoError(t, err)
		checkChain(t, d)
	}
	assert.Equal(t, 1, d.Blocks())
}

func TestEmptyContainerErrors(t *testing.T) {
	d := NewDeque[string]()

	_, err := d.Front()
	assert.ErrorIs(t, err, ErrEmptyContainer)
	_, err = d.Back()
	assert.ErrorIs(t, err, ErrEmptyContainer)
	_, err = d.PopFront()
	assert.ErrorIs(t, err, ErrEmptyContainer)
	_, err = d.PopBack()
	assert.ErrorIs(t, err, ErrEmptyContainer)
	_, err = d.Erase(d.Begin())
	assert.ErrorIs(t, err, ErrEmptyContainer)
}

func TestAtAndSet(t *testing.T) {
	d := NewDequeSize[int](8)
	for i := 0; i < 100; i++ {
		d.PushBack(i * 10)
	}
	for i := 0; i < 100; i++ {
		v, err := d.At(i)
		require.NoError(t, err)
		require.Equal(t, i*10, v)
	}

	require.NoError(t, d.Set(42, -1))
	v, err := d.At(42)
	require.NoError(t, err)
	assert.Equal(t, -1, v)

	_, err = d.At(d.Size())
	assert.ErrorIs(t, err, ErrIndexOutOfBound)
	_, err = d.At(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfBound)
	assert.ErrorIs(t, d.Set(100, 0), ErrIndexOutOfBound)
}

func TestFrontBack(t *testing.T) {
	d := NewDequeSize[string](2)
	d.PushBack("b")
	d.PushFront("a")
	d.PushBack("c")

	front, err := d.Front()
	require.NoError(t, err)
	assert.Equal(t, "a", front)

	back, err := d.Back()
	require.NoError(t, err)
	assert.Equal(t, "c", back)
}

func TestSplitOnPushBack(t *testing.T) {
	d := NewDeque[int]()
	for i := 1; i <= 300; i++ {
		d.PushBack(i)
	}
	checkChain(t, d)
	assert.Greater(t, d.Blocks(), 1)
	assert.Equal(t, 300, d.Size())

	first, err := d.At(0)
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	last, err := d.At(299)
	require.NoError(t, err)
	assert.Equal(t, 300, last)

	assert.Equal(t, DefaultBlockSize/2, d.head.size)
}

func TestMergeOnErase(t *testing.T) {
	d := NewDeque[int]()
	for i := 1; i <= 300; i++ {
		d.PushBack(i)
	}
	require.Equal(t, 2, d.Blocks())

	merged := false
	for d.Size() > 10 {
		before := d.Blocks()
		next, err := d.Erase(d.Begin())
		require.NoError(t, err)
		require.True(t, next.Equal(d.Begin()))
		if d.Blocks() < before {
			merged = true
		}
		checkChain(t, d)
	}
	assert.True(t, merged)
	assert.Equal(t, 1, d.Blocks())
	assert.Equal(t, seq(291, 300), d.Values())
}

func TestEraseFromMiddleKeepsOrder(t *testing.T) {
	d := NewDeque[int]()
	for i := 1; i <= 300; i++ {
		d.PushBack(i)
	}
	// Erase everything except the first five and the last five.
	it, err := d.Begin().Add(5)
	require.NoError(t, err)
	for d.Size() > 10 {
		it, err = d.Erase(it)
		require.NoError(t, err)
		checkChain(t, d)
	}
	want := append(seq(1, 5), seq(296, 300)...)
	assert.Equal(t, want, d.Values())
	v, err := it.Value()
	require.NoError(t, err)
	assert.Equal(t, 296, v)
}

func TestInsertAtAndEraseAt(t *testing.T) {
	d := NewDequeSize[int](4)
	require.NoError(t, d.InsertAt(0, 2))
	require.NoError(t, d.InsertAt(0, 0))
	require.NoError(t, d.InsertAt(1, 1))
	require.NoError(t, d.InsertAt(3, 3))
	assert.ErrorIs(t, d.InsertAt(5, 9), ErrIndexOutOfBound)
	assert.Equal(t, []int{0, 1, 2, 3}, d.Values())

	v, err := d.EraseAt(1)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	_, err = d.EraseAt(3)
	assert.ErrorIs(t, err, ErrIndexOutOfBound)
	assert.Equal(t, []int{0, 2, 3}, d.Values())
	checkChain(t, d)
}

func TestClear(t *testing.T) {
	d := NewDequeSize[int](4)
	for i := 0; i < 50; i++ {
		d.PushBack(i)
	}
	old := d.Begin()
	d.Clear()
	checkChain(t, d)
	assert.True(t, d.Empty())
	assert.Equal(t, 1, d.Blocks())

	_, err := old.Value()
	assert.ErrorIs(t, err, ErrInvalidIterator)

	d.PushBack(7)
	assert.Equal(t, []int{7}, d.Values())
}

func TestCloneIsIndependent(t *testing.T) {
	d := NewDequeSize[int](4)
	for i := 0; i < 20; i++ {
		d.PushBack(i)
	}
	c := d.Clone()
	checkChain(t, c)
	assert.Equal(t, d.Values(), c.Values())
	assert.Equal(t, d.Blocks(), c.Blocks())

	c.PushBack(100)
	require.NoError(t, c.Set(0, -1))
	_, err := d.PopBack()
	require.NoError(t, err)

	assert.Equal(t, seq(0, 18), d.Values())
	assert.Equal(t, append(append([]int{-1}, seq(1, 19)...), 100), c.Values())

	// Iterators never cross over.
	_, err = c.Erase(d.Begin())
	assert.ErrorIs(t, err, ErrInvalidIterator)
}

func TestCloneFuncCopiesElements(t *testing.T) {
	d := NewDeque[[]int]()
	d.PushBack([]int{1, 2})
	c := d.CloneFunc(func(v []int) []int { return append([]int(nil), v...) })

	v, err := c.Front()
	require.NoError(t, err)
	v[0] = 99

	orig, err := d.Front()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, orig)
}

func TestAssign(t *testing.T) {
	src := NewDequeSize[int](4)
	for i := 0; i < 10; i++ {
		src.PushBack(i)
	}

	dst := NewDequeSize[int](4)
	dst.PushBack(-1)
	dst.Assign(src)
	checkChain(t, dst)
	assert.Equal(t, src.Values(), dst.Values())

	dst.PushFront(-5)
	assert.Equal(t, seq(0, 9), src.Values())

	other := NewDequeSize[int](16)
	other.Assign(src)
	checkChain(t, other)
	assert.Equal(t, 16, other.BlockSize())
	assert.Equal(t, src.Values(), other.Values())

	dst.Assign(dst)
	assert.Equal(t, 11, dst.Size())
}

func TestAllAndBackward(t *testing.T) {
	d := NewDequeSize[int](3)
	for i := 0; i < 10; i++ {
		d.PushBack(i)
	}

	var fwd []int
	for i, v := range d.All() {
		require.Equal(t, i, v)
		fwd = append(fwd, v)
	}
	assert.Equal(t, seq(0, 9), fwd)

	var back []int
	for i, v := range d.Backward() {
		require.Equal(t, i, v)
		back = append(back, v)
		if len(back) == 4 {
			break
		}
	}
	assert.Equal(t, []int{9, 8, 7, 6}, back)
}

func TestIndexOf(t *testing.T) {
	d := NewDequeSize[int](4)
	for i := 0; i < 30; i++ {
		d.PushBack(i)
	}
	for k := 0; k <= 30; k++ {
		it, err := d.Begin().Add(k)
		require.NoError(t, err)
		idx, err := d.IndexOf(it)
		require.NoError(t, err)
		require.Equal(t, k, idx)
	}
	_, err := d.IndexOf(NewDeque[int]().Begin())
	assert.ErrorIs(t, err, ErrInvalidIterator)
}
