package suballoc

// linkSelf makes the block at offset its own next and prev, the degenerate
// single-block form of the free list, and makes it the head.
func (a *Allocator) linkSelf(offset uint32) {
	h := a.headerAt(offset)
	h.setNext(offset)
	h.setPrev(offset)
	a.freeListHead = offset
}

// forEachFree walks the free list in next-order starting at freeListHead,
// calling visit once per free block. Traversal stops either when visit
// returns true or when it returns to the starting offset.
func (a *Allocator) forEachFree(visit func(offset uint32) (stop bool)) {
	start := a.freeListHead
	cur := start
	for {
		if visit(cur) {
			return
		}
		next := a.headerAt(cur).next()
		if next == start {
			return
		}
		cur = next
	}
}

// insertFree threads a newly-freed block at offset into the free list in
// address order, preserving the invariant that freeListHead is always the
// lowest free offset.
//
// It finds the free block `after` with the smallest offset greater than o
// (cyclically; if o is smaller than every free offset, after is the current
// head), splices o in between after.prev and after, and moves the head if o
// is now the new minimum.
func (a *Allocator) insertFree(o uint32) {
	head := a.freeListHead
	var after uint32
	if o < head {
		after = head
	} else {
		cur := head
		for {
			next := a.headerAt(cur).next()
			if next == head {
				// wrapped all the way around: o is larger than every
				// existing free offset, insert at the end.
				after = head
				break
			}
			if next > o {
				after = next
				break
			}
			cur = next
		}
	}

	before := a.headerAt(after).prev()
	oh := a.headerAt(o)
	oh.setPrev(before)
	oh.setNext(after)
	a.headerAt(before).setNext(o)
	a.headerAt(after).setPrev(o)

	if o < head {
		a.freeListHead = o
	}
}

// unlinkFree splices the free block at offset out of the list in O(1). If it
// was the sole free block, the splice leaves it linked to itself and still
// the head; Alloc never unlinks the last free block, and coalesce only
// unlinks one of two free blocks.
func (a *Allocator) unlinkFree(offset uint32) {
	b := a.headerAt(offset)
	next, prev := b.next(), b.prev()
	a.headerAt(prev).setNext(next)
	a.headerAt(next).setPrev(prev)
	if offset == a.freeListHead {
		a.freeListHead = next
	}
}

// freeListLen counts the blocks currently on the free list. O(n); used only
// by tests, never on the hot path.
func (a *Allocator) freeListLen() int {
	n := 0
	a.forEachFree(func(uint32) bool {
		n++
		return false
	})
	return n
}
