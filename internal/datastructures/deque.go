package datastructures

import (
	"fmt"
	"iter"
)

// Deque is a double-ended sequence stored as a doubly linked chain of
// fixed-capacity blocks (an unrolled linked list). Pushes and pops at either
// end are amortized O(1); indexed access walks whole blocks, so it costs
// O(n/blockSize).
//
// A Deque is not safe for concurrent use.
type Deque[T any] struct {
	head      *block[T]
	tail      *block[T]
	length    int
	blockSize int
}

// locator addresses one slot of the chain. It is only meaningful while blk
// stays linked.
type locator[T any] struct {
	blk *block[T]
	off int
}

// NewDeque creates an empty deque with DefaultBlockSize blocks.
func NewDeque[T any]() *Deque[T] {
	return NewDequeSize[T](DefaultBlockSize)
}

// NewDequeSize creates an empty deque whose blocks hold blockSize elements.
func NewDequeSize[T any](blockSize int) *Deque[T] {
	if blockSize < 2 {
		panic("block size must be at least 2")
	}
	d := &Deque[T]{blockSize: blockSize}
	d.head = newBlock(d, blockSize)
	d.tail = d.head
	return d
}

// Clone returns an independent copy of the deque. Elements are copied by
// assignment; use CloneFunc when T holds references that must not be shared.
func (d *Deque[T]) Clone() *Deque[T] {
	return d.CloneFunc(nil)
}

// CloneFunc is like Clone but passes every element through copyFn.
func (d *Deque[T]) CloneFunc(copyFn func(T) T) *Deque[T] {
	c := NewDequeSize[T](d.blockSize)
	c.copyFrom(d, copyFn)
	return c
}

// Assign replaces the contents of d with a copy of src.
func (d *Deque[T]) Assign(src *Deque[T]) {
	if d == src {
		return
	}
	d.Clear()
	d.copyFrom(src, nil)
}

func (d *Deque[T]) copyFrom(src *Deque[T], copyFn func(T) T) {
	if src.blockSize != d.blockSize {
		for _, v := range src.All() {
			if copyFn != nil {
				v = copyFn(v)
			}
			d.PushBack(v)
		}
		return
	}

	// Same capacity: mirror the source layout block by block.
	dst := d.head
	for sb := src.head; sb != nil; sb = sb.next {
		if sb != src.head {
			nb := newBlock(d, d.blockSize)
			d.linkAfter(dst, nb)
			dst = nb
		}
		if copyFn == nil {
			copy(dst.data, sb.data[:sb.size])
		} else {
			for i := 0; i < sb.size; i++ {
				dst.data[i] = copyFn(sb.data[i])
			}
		}
		dst.size = sb.size
	}
	d.length = src.length
}

// Len returns the number of elements in the deque.
func (d *Deque[T]) Len() int {
	return d.length
}

// Size is an alias for Len.
func (d *Deque[T]) Size() int {
	return d.length
}

// Empty reports whether the deque holds no elements.
func (d *Deque[T]) Empty() bool {
	return d.length == 0
}

// BlockSize returns the capacity of each block.
func (d *Deque[T]) BlockSize() int {
	return d.blockSize
}

// Blocks returns the number of blocks currently in the chain.
func (d *Deque[T]) Blocks() int {
	n := 0
	for b := d.head; b != nil; b = b.next {
		n++
	}
	return n
}

// Clear removes every element and leaves a single empty block.
func (d *Deque[T]) Clear() {
	// Walk the chain iteratively; detaching also invalidates iterators.
	for b := d.head; b != nil; {
		next := b.next
		b.detach()
		b = next
	}
	d.head = newBlock(d, d.blockSize)
	d.tail = d.head
	d.length = 0
}

// locate resolves a logical index to its block and offset, walking from
// whichever end of the chain is closer.
func (d *Deque[T]) locate(index int) (locator[T], bool) {
	if index < 0 || index >= d.length {
		return locator[T]{}, false
	}
	if index < d.length/2 {
		b := d.head
		for index >= b.size {
			index -= b.size
			b = b.next
		}
		return locator[T]{blk: b, off: index}, true
	}
	rest := d.length - 1 - index
	b := d.tail
	for rest >= b.size {
		rest -= b.size
		b = b.prev
	}
	return locator[T]{blk: b, off: b.size - 1 - rest}, true
}

func (d *Deque[T]) beginLoc() locator[T] {
	return locator[T]{blk: d.head, off: 0}
}

func (d *Deque[T]) endLoc() locator[T] {
	return locator[T]{blk: d.tail, off: d.tail.size}
}

// At returns the element at index.
func (d *Deque[T]) At(index int) (T, error) {
	loc, ok := d.locate(index)
	if !ok {
		var zero T
		return zero, d.outOfBound(index)
	}
	return loc.blk.data[loc.off], nil
}

// Set overwrites the element at index.
func (d *Deque[T]) Set(index int, value T) error {
	loc, ok := d.locate(index)
	if !ok {
		return d.outOfBound(index)
	}
	loc.blk.data[loc.off] = value
	return nil
}

func (d *Deque[T]) outOfBound(index int) error {
	return fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfBound, index, d.length)
}

// Front returns the first element.
func (d *Deque[T]) Front() (T, error) {
	if d.length == 0 {
		var zero T
		return zero, ErrEmptyContainer
	}
	return d.head.data[0], nil
}

// Back returns the last element.
func (d *Deque[T]) Back() (T, error) {
	if d.length == 0 {
		var zero T
		return zero, ErrEmptyContainer
	}
	return d.tail.data[d.tail.size-1], nil
}

// Begin returns an iterator to the first element, equal to End when the
// deque is empty.
func (d *Deque[T]) Begin() Iterator[T] {
	return Iterator[T]{d: d, loc: d.beginLoc()}
}

// End returns the one-past-the-last iterator.
func (d *Deque[T]) End() Iterator[T] {
	return Iterator[T]{d: d, loc: d.endLoc()}
}

// CBegin is the read-only variant of Begin.
func (d *Deque[T]) CBegin() ConstIterator[T] {
	return d.Begin().Const()
}

// CEnd is the read-only variant of End.
func (d *Deque[T]) CEnd() ConstIterator[T] {
	return d.End().Const()
}

// owns checks that it was produced by d and still points into d's chain.
func (d *Deque[T]) owns(it Iterator[T]) error {
	if it.d != d {
		return fmt.Errorf("%w: iterator belongs to another deque", ErrInvalidIterator)
	}
	if it.loc.blk == nil || it.loc.blk.owner != d {
		return fmt.Errorf("%w: stale iterator", ErrInvalidIterator)
	}
	return nil
}

// Insert stores value before pos and returns an iterator to it. pos must
// reference an element of d or be End. Iterators other than the returned
// one may be invalidated.
func (d *Deque[T]) Insert(pos Iterator[T], value T) (Iterator[T], error) {
	if err := d.owns(pos); err != nil {
		return Iterator[T]{}, err
	}
	b, off := pos.loc.blk, pos.loc.off
	if off < 0 || off > b.size || (off == b.size && b != d.tail) {
		return Iterator[T]{}, fmt.Errorf("%w: insert position %d outside block of %d", ErrInvalidIterator, off, b.size)
	}
	return Iterator[T]{d: d, loc: d.insertAt(pos.loc, value)}, nil
}

// Erase removes the element at pos and returns an iterator to the element
// that followed it, or End if it was the last.
func (d *Deque[T]) Erase(pos Iterator[T]) (Iterator[T], error) {
	if err := d.owns(pos); err != nil {
		return Iterator[T]{}, err
	}
	if d.length == 0 {
		return Iterator[T]{}, ErrEmptyContainer
	}
	b, off := pos.loc.blk, pos.loc.off
	if off < 0 || off >= b.size {
		return Iterator[T]{}, fmt.Errorf("%w: erase position %d outside block of %d", ErrInvalidIterator, off, b.size)
	}
	_, next := d.eraseAt(pos.loc)
	return Iterator[T]{d: d, loc: next}, nil
}

// InsertAt stores value so that it ends up at index. index may equal Len.
func (d *Deque[T]) InsertAt(index int, value T) error {
	if index == d.length {
		d.insertAt(d.endLoc(), value)
		return nil
	}
	loc, ok := d.locate(index)
	if !ok {
		return d.outOfBound(index)
	}
	d.insertAt(loc, value)
	return nil
}

// EraseAt removes and returns the element at index.
func (d *Deque[T]) EraseAt(index int) (T, error) {
	loc, ok := d.locate(index)
	if !ok {
		var zero T
		return zero, d.outOfBound(index)
	}
	value, _ := d.eraseAt(loc)
	return value, nil
}

// PushBack appends value.
func (d *Deque[T]) PushBack(value T) {
	d.insertAt(d.endLoc(), value)
}

// PushFront prepends value.
func (d *Deque[T]) PushFront(value T) {
	d.insertAt(d.beginLoc(), value)
}

// PopBack removes and returns the last element.
func (d *Deque[T]) PopBack() (T, error) {
	if d.length == 0 {
		var zero T
		return zero, ErrEmptyContainer
	}
	value, _ := d.eraseAt(locator[T]{blk: d.tail, off: d.tail.size - 1})
	return value, nil
}

// PopFront removes and returns the first element.
func (d *Deque[T]) PopFront() (T, error) {
	if d.length == 0 {
		var zero T
		return zero, ErrEmptyContainer
	}
	value, _ := d.eraseAt(d.beginLoc())
	return value, nil
}

// IndexOf returns the logical index it refers to; End maps to Len.
func (d *Deque[T]) IndexOf(it Iterator[T]) (int, error) {
	if err := d.owns(it); err != nil {
		return 0, err
	}
	return it.Distance(d.Begin())
}

// Values returns the elements in order as a new slice.
func (d *Deque[T]) Values() []T {
	out := make([]T, 0, d.length)
	for b := d.head; b != nil; b = b.next {
		out = append(out, b.data[:b.size]...)
	}
	return out
}

// All yields index/element pairs from front to back.
func (d *Deque[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		i := 0
		for b := d.head; b != nil; b = b.next {
			for j := 0; j < b.size; j++ {
				if !yield(i, b.data[j]) {
					return
				}
				i++
			}
		}
	}
}

// Backward yields index/element pairs from back to front.
func (d *Deque[T]) Backward() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		i := d.length - 1
		for b := d.tail; b != nil; b = b.prev {
			for j := b.size - 1; j >= 0; j-- {
				if !yield(i, b.data[j]) {
					return
				}
				i--
			}
		}
	}
}
