package datastructures

// linkAfter places nb directly after b in the chain.
func (d *Deque[T]) linkAfter(b, nb *block[T]) {
	nb.prev = b
	nb.next = b.next
	if b.next != nil {
		b.next.prev = nb
	} else {
		d.tail = nb
	}
	b.next = nb
}

// unlink removes b from the chain, relinking its neighbours and moving
// head/tail when b was an endpoint.
func (d *Deque[T]) unlink(b *block[T]) {
	if b.prev != nil {
		b.prev.next = b.next
	} else {
		d.head = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	} else {
		d.tail = b.prev
	}
	b.detach()
}

// insertAt stores value at loc, splitting the block once it reaches
// capacity. It returns where value ended up.
func (d *Deque[T]) insertAt(loc locator[T], value T) locator[T] {
	loc.blk.insertAt(loc.off, value)
	d.length++
	if loc.blk.size < d.blockSize {
		return loc
	}
	return d.split(loc.blk, loc.off)
}

// split moves the upper half of a full block into a new block linked after
// it. The left half keeps size/2 elements. The returned locator is where
// the element at off now lives.
func (d *Deque[T]) split(b *block[T], off int) locator[T] {
	half := b.size / 2
	right := newBlock(d, d.blockSize)
	b.moveTail(half, right)
	d.linkAfter(b, right)
	if off < half {
		return locator[T]{blk: b, off: off}
	}
	return locator[T]{blk: right, off: off - half}
}

// eraseAt removes the element at loc and restores block occupancy. It
// returns the removed value and the location of its successor.
func (d *Deque[T]) eraseAt(loc locator[T]) (T, locator[T]) {
	b := loc.blk
	value := b.removeAt(loc.off)
	d.length--

	// succ tracks the element that followed the erased one; a nil blk
	// stands for End and is resolved after the chain settles.
	var succ locator[T]
	switch {
	case loc.off < b.size:
		succ = locator[T]{blk: b, off: loc.off}
	case b.next != nil:
		succ = locator[T]{blk: b.next, off: 0}
	}

	if b.size == 0 {
		if d.head != d.tail {
			d.unlink(b)
		}
	} else {
		d.merge(b, &succ)
	}

	if succ.blk == nil {
		return value, d.endLoc()
	}
	return value, succ
}

// merge refills an underfull block, first from the blocks after it and then
// from the blocks before it. Two blocks are merged only while b is below
// half capacity and their combined size stays under capacity.
func (d *Deque[T]) merge(b *block[T], track *locator[T]) {
	minSize := d.blockSize / 2
	for b.size < minSize && b.next != nil && b.size+b.next.size < d.blockSize {
		d.absorb(b, b.next, track)
	}
	for b.size < minSize && b.prev != nil && b.prev.size+b.size < d.blockSize {
		p := b.prev
		d.absorb(p, b, track)
		b = p
	}
}

// absorb appends right to left and drops right from the chain, remapping
// track if it pointed into right.
func (d *Deque[T]) absorb(left, right *block[T], track *locator[T]) {
	if track != nil && track.blk == right {
		track.blk = left
		track.off += left.size
	}
	left.appendFrom(right)
	d.unlink(right)
}
