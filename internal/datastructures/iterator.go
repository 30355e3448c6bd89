package datastructures

import (
	"fmt"
	"math"
)

// Iterator is a position in a Deque: a block and an offset inside it, tied
// to the deque that produced it. End is the position one past the last
// element. Structural changes (a split, a merge or a removed block)
// invalidate iterators into the affected blocks; only the iterator returned
// by Insert or Erase is guaranteed to survive the call.
type Iterator[T any] struct {
	d   *Deque[T]
	loc locator[T]
}

func (it Iterator[T]) check() error {
	if it.d == nil || it.loc.blk == nil {
		return fmt.Errorf("%w: iterator has no deque", ErrInvalidIterator)
	}
	if it.loc.blk.owner != it.d {
		return fmt.Errorf("%w: stale iterator", ErrInvalidIterator)
	}
	if it.loc.off < 0 || it.loc.off > it.loc.blk.size {
		return fmt.Errorf("%w: offset %d outside block of %d", ErrInvalidIterator, it.loc.off, it.loc.blk.size)
	}
	return nil
}

// Add returns the iterator n elements further on. Landing exactly on End is
// allowed; going beyond it is an error. A negative n moves backwards.
func (it Iterator[T]) Add(n int) (Iterator[T], error) {
	if err := it.check(); err != nil {
		return Iterator[T]{}, err
	}
	if n == math.MinInt {
		return Iterator[T]{}, fmt.Errorf("%w: moved before begin", ErrInvalidIterator)
	}
	if n < 0 {
		return it.Sub(-n)
	}
	b, off := it.loc.blk, it.loc.off
	for n >= b.size-off && b.next != nil {
		n -= b.size - off
		b, off = b.next, 0
	}
	if n > b.size-off {
		return Iterator[T]{}, fmt.Errorf("%w: advanced past end", ErrInvalidIterator)
	}
	off += n
	return Iterator[T]{d: it.d, loc: locator[T]{blk: b, off: off}}, nil
}

// Sub returns the iterator n elements back. Moving before the first element
// is an error. A negative n moves forwards.
func (it Iterator[T]) Sub(n int) (Iterator[T], error) {
	if err := it.check(); err != nil {
		return Iterator[T]{}, err
	}
	if n == math.MinInt {
		return Iterator[T]{}, fmt.Errorf("%w: advanced past end", ErrInvalidIterator)
	}
	if n < 0 {
		return it.Add(-n)
	}
	b, off := it.loc.blk, it.loc.off
	for n > off && b.prev != nil {
		n -= off + 1
		b = b.prev
		off = b.size - 1
	}
	if n > off {
		return Iterator[T]{}, fmt.Errorf("%w: moved before begin", ErrInvalidIterator)
	}
	off -= n
	return Iterator[T]{d: it.d, loc: locator[T]{blk: b, off: off}}, nil
}

// Next is Add(1).
func (it Iterator[T]) Next() (Iterator[T], error) {
	return it.Add(1)
}

// Prev is Sub(1).
func (it Iterator[T]) Prev() (Iterator[T], error) {
	return it.Sub(1)
}

// Distance returns it - other: how many steps forward take other to it.
// Both iterators must come from the same deque.
func (it Iterator[T]) Distance(other Iterator[T]) (int, error) {
	if it.d != other.d {
		return 0, fmt.Errorf("%w: distance between different deques", ErrInvalidIterator)
	}
	if err := it.check(); err != nil {
		return 0, err
	}
	if err := other.check(); err != nil {
		return 0, err
	}
	if it.loc.blk == other.loc.blk {
		return it.loc.off - other.loc.off, nil
	}

	// The chain only links neighbours, so look for other after it first and
	// then for it after other.
	n := 0
	for b := it.loc.blk; b != nil; b = b.next {
		if b == other.loc.blk {
			return it.loc.off - (n + other.loc.off), nil
		}
		n += b.size
	}
	n = 0
	for b := other.loc.blk; b != nil; b = b.next {
		if b == it.loc.blk {
			return n + it.loc.off - other.loc.off, nil
		}
		n += b.size
	}
	return 0, fmt.Errorf("%w: iterators are not on one chain", ErrInvalidIterator)
}

// Value returns the element it points to.
func (it Iterator[T]) Value() (T, error) {
	if err := it.deref(); err != nil {
		var zero T
		return zero, err
	}
	return it.loc.blk.data[it.loc.off], nil
}

// Set overwrites the element it points to.
func (it Iterator[T]) Set(value T) error {
	if err := it.deref(); err != nil {
		return err
	}
	it.loc.blk.data[it.loc.off] = value
	return nil
}

func (it Iterator[T]) deref() error {
	if err := it.check(); err != nil {
		return err
	}
	if it.loc.off >= it.loc.blk.size {
		return fmt.Errorf("%w: dereference of end", ErrInvalidIterator)
	}
	return nil
}

// Equal reports whether both iterators address the same slot of the same
// deque.
func (it Iterator[T]) Equal(other Iterator[T]) bool {
	return it.d == other.d && it.loc == other.loc
}

// IsEnd reports whether it is the one-past-the-last position.
func (it Iterator[T]) IsEnd() bool {
	return it.d != nil && it.loc.blk == it.d.tail && it.loc.off == it.d.tail.size
}

// Const returns a read-only view of the same position.
func (it Iterator[T]) Const() ConstIterator[T] {
	return ConstIterator[T]{it: it}
}

// ConstIterator is an Iterator that cannot modify the deque. Its methods
// behave like the Iterator methods of the same name.
type ConstIterator[T any] struct {
	it Iterator[T]
}

// Add moves n elements forward.

func (c ConstIterator[T]) Add(n int) (ConstIterator[T], error) {
	it, err := c.it.Add(n)
	return it.Const(), err
}

// Sub moves n elements back.
func (c ConstIterator[T]) Sub(n int) (ConstIterator[T], error) {
	it, err := c.it.Sub(n)
	return it.Const(), err
}

// Next moves one element forward.
func (c ConstIterator[T]) Next() (ConstIterator[T], error) {
	return c.Add(1)
}

// Prev moves one element back.
func (c ConstIterator[T]) Prev() (ConstIterator[T], error) {
	return c.Sub(1)
}

// Distance returns the signed element count from other to c.
func (c ConstIterator[T]) Distance(other ConstIterator[T]) (int, error) {
	return c.it.Distance(other.it)
}

// Value returns the element at c.
func (c ConstIterator[T]) Value() (T, error) {
	return c.it.Value()
}

// Equal reports whether both refer to the same position.
func (c ConstIterator[T]) Equal(other ConstIterator[T]) bool {
	return c.it.Equal(other.it)
}

// IsEnd reports whether c is the End position.
func (c ConstIterator[T]) IsEnd() bool {
	return c.it.IsEnd()
}
