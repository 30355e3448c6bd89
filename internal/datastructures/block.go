package datastructures

// DefaultBlockSize is the block capacity used by NewDeque.
const DefaultBlockSize = 256

// block is one node of the chain: a fixed-capacity run of elements stored at
// offsets 0..size-1. prev and next are plain references; the deque owns every
// block through its head/tail walk.
type block[T any] struct {
	data []T
	size int
	prev *block[T]
	next *block[T]

	// owner is the deque the block is linked into, nil once unlinked.
	owner *Deque[T]
}

func newBlock[T any](owner *Deque[T], capacity int) *block[T] {
	return &block[T]{
		data:  make([]T, capacity),
		owner: owner,
	}
}

// insertAt shifts elements at offset and beyond one slot right and stores
// value at offset. The caller guarantees size < len(data).
func (b *block[T]) insertAt(offset int, value T) {
	copy(b.data[offset+1:b.size+1], b.data[offset:b.size])
	b.data[offset] = value
	b.size++
}

// removeAt drops the element at offset and shifts the rest left.
func (b *block[T]) removeAt(offset int) T {
	var zero T
	value := b.data[offset]
	copy(b.data[offset:b.size-1], b.data[offset+1:b.size])
	b.size--
	b.data[b.size] = zero
	return value
}

// appendFrom moves every element of src to the end of b and empties src.
func (b *block[T]) appendFrom(src *block[T]) {
	copy(b.data[b.size:], src.data[:src.size])
	b.size += src.size
	src.reset()
}

// moveTail moves elements [from, size) into the empty block dst.
func (b *block[T]) moveTail(from int, dst *block[T]) {
	var zero T
	n := copy(dst.data, b.data[from:b.size])
	dst.size = n
	for i := from; i < b.size; i++ {
		b.data[i] = zero
	}
	b.size = from
}

// reset zeroes the occupied slots so the elements can be collected.
func (b *block[T]) reset() {
	clear(b.data[:b.size])
	b.size = 0
}

// detach drops the block's contents and links and clears its owner, so
// iterators still pointing at it are rejected.
func (b *block[T]) detach() {
	b.reset()
	b.prev = nil
	b.next = nil
	b.owner = nil
}
