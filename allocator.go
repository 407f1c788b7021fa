package suballoc

import (
	"fmt"
	"strings"

	"github.com/bytedance/gopkg/lang/fastrand"
)

// Allocator is a binary-buddy suballocator over a single preallocated byte
// arena. It is single-threaded and non-reentrant: a caller embedding it in a
// concurrent program must serialise Alloc/Free externally.
//
// The zero value is not ready to use; construct one with New.
type Allocator struct {
	ar           *arena
	freeListHead uint32
	memorySize   uint32
	initialized  bool

	debugScrub bool
}

// Option configures an Allocator at construction time.
type Option func(*Allocator)

// WithDebugScrub overwrites a block's payload bytes with randomized poison
// on Free, before it is relinked onto the free list. This is a debugging
// aid: a caller holding a stale pointer past Free reads garbage instead of
// silently-still-valid bytes. Off by default since it adds a write pass to
// every Free.
func WithDebugScrub() Option {
	return func(a *Allocator) { a.debugScrub = true }
}

// New constructs an allocator. Call Init before the first Alloc.
func New(opts ...Option) *Allocator {
	a := &Allocator{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init creates the arena, sized to the next power of two >= max(size,
// headerSize), and seeds it with a single free block covering the whole
// region. Calling Init on an already-initialised allocator is a no-op; the
// existing arena is preserved.
func (a *Allocator) Init(size uint32) {
	if a.initialized {
		return
	}
	memSize := nextPow2(size, headerSize)
	a.ar = newArenaChecked(memSize)
	a.memorySize = memSize
	a.linkSelf(0) // single block covering the whole arena
	a.initialized = true
}

// newArenaChecked wraps newArena so a host allocation failure (make()
// panicking on an oversized or out-of-memory request) is reported through
// the same fatal-diagnostic path as corruption: host allocation failure is
// fatal, not a recoverable error.
func newArenaChecked(memSize uint32) (ar *arena) {
	defer func() {
		if r := recover(); r != nil {
			fatalf("host allocation of %d bytes failed: %v", memSize, r)
		}
	}()
	return newArena(memSize)
}

func (a *Allocator) headerAt(offset uint32) header {
	return a.ar.headerAt(offset)
}

// Alloc returns the payload offset of a best-fit, recursively-halved free
// block able to hold n bytes, and true. It returns (0, false) when no block
// fits, when serving the request would empty the free list, or when n is
// at or below the minimum region size — all of these are soft failures, not
// panics.
//
// Corruption encountered while walking the free list is fatal (panics).
func (a *Allocator) Alloc(n uint32) (uint32, bool) {
	if n <= minRegionSize {
		return 0, false
	}
	need := n + headerSize

	target, targetSize, found := a.findBestFit(need)
	if !found {
		return 0, false
	}

	for targetSize >= 2*need {
		targetSize /= 2
		a.split(target, targetSize)
	}

	th := a.headerAt(target)
	if th.next() == target || th.prev() == target {
		// Serving this request would consume the arena's last free block;
		// the allocator refuses rather than emptying the free list.
		return 0, false
	}

	a.unlinkFree(target)
	th.setMagic(magicAlloc)
	return target + headerSize, true
}

// findBestFit walks the entire free list and returns the offset and size of
// the smallest free block able to satisfy need, ties broken by traversal
// order (first encountered wins).
func (a *Allocator) findBestFit(need uint32) (offset, size uint32, found bool) {
	a.forEachFree(func(o uint32) bool {
		h := a.headerAt(o)
		checkMagic(o, magicFree, h.magic())
		sz := h.size()
		if sz >= need && (!found || sz < size) {
			offset, size, found = o, sz, true
		}
		return false
	})
	return
}

// split halves the block at offset in place, materialising a new free
// sibling header at offset+newSize and splicing it into target's place in
// the free list (target keeps its position; the new right half is linked
// in immediately after it).
func (a *Allocator) split(offset, newSize uint32) {
	th := a.headerAt(offset)
	th.setSize(newSize)

	splitOffset := offset + newSize
	sh := a.headerAt(splitOffset)
	sh.setMagic(magicFree)
	sh.setSize(newSize)
	sh.setNext(th.next())
	sh.setPrev(offset)

	a.headerAt(th.next()).setPrev(splitOffset)
	th.setNext(splitOffset)
}

// Free returns the block at payload offset p to the free list, coalescing
// with its buddy as long as the buddy is free and adjacent. p must be an
// offset previously returned by Alloc; anything else is an invalid free and
// is fatal.
func (a *Allocator) Free(p uint32) {
	if p < headerSize || p > a.memorySize {
		fatalf("free: offset %d is not a valid payload pointer", p)
	}
	offset := p - headerSize
	h := a.headerAt(offset)
	if h.magic() != magicAlloc {
		fatalf("invalid free at offset %d: expected ALLOC tag, got %#x", offset, h.magic())
	}

	size := h.size()
	h.setMagic(magicFree)
	if a.debugScrub {
		scrub(a.ar.payload(offset, size))
	}

	a.insertFree(offset)
	a.coalesce(offset)
}

// coalesce repeatedly merges the free block at b with its buddy, following
// the parity rule: b's buddy sits after it iff (offset/size) is even, else
// before it. It stops as soon as the free list has one block left, or the
// would-be buddy fails the size/adjacency check.
func (a *Allocator) coalesce(b uint32) {
	for {
		bh := a.headerAt(b)
		if bh.next() == b {
			return
		}
		size := bh.size()
		after := (b/size)%2 == 0

		var candidate uint32
		if after {
			candidate = bh.next()
		} else {
			candidate = bh.prev()
		}
		ch := a.headerAt(candidate)

		buddyOK := ch.size() == size
		if buddyOK {
			if after {
				buddyOK = b+size == candidate
			} else {
				buddyOK = candidate+ch.size() == b
			}
		}
		if !buddyOK {
			return
		}

		lower, higher := b, candidate
		if !after {
			lower, higher = candidate, b
		}

		wasHead := a.freeListHead == higher
		a.unlinkFree(higher)
		a.headerAt(lower).setSize(size * 2)
		if wasHead {
			// The free-list head always holds the lowest free offset, so
			// higher (by construction the larger offset of the pair) can
			// never be the head in practice. Kept as a defensive correction
			// in case that invariant is ever violated by a future change.
			a.freeListHead = lower
		}
		b = lower
	}
}

// scrub overwrites payload bytes with randomized poison so a use-after-free
// read is obviously wrong rather than accidentally plausible.
func scrub(payload []byte) {
	for i := range payload {
		payload[i] = byte(fastrand.Uint32n(256))
	}
}

// Teardown releases the arena and resets all allocator state so a
// subsequent Init starts clean.
func (a *Allocator) Teardown() {
	a.ar = nil
	a.memorySize = 0
	a.freeListHead = 0
	a.initialized = false
}

// Stats returns a human-readable dump of arena metadata and the free list,
// for diagnostics. It never mutates allocator state.
func (a *Allocator) Stats() string {
	if !a.initialized {
		return "suballoc: not initialised"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "arena: %d bytes, header %d bytes\n", a.memorySize, headerSize)

	freeBytes, freeBlocks, largest := uint32(0), 0, uint32(0)
	a.forEachFree(func(o uint32) bool {
		sz := a.headerAt(o).size()
		freeBlocks++
		freeBytes += sz
		if sz > largest {
			largest = sz
		}
		return false
	})
	fmt.Fprintf(&b, "free: %d blocks, %d bytes total, largest %d bytes\n", freeBlocks, freeBytes, largest)

	fmt.Fprintf(&b, "blocks (offset, size, tag):\n")
	var offset uint32
	for offset < a.memorySize {
		h := a.headerAt(offset)
		tag := "ALLOC"
		switch h.magic() {
		case magicFree:
			tag = "FREE"
		case magicAlloc:
			tag = "ALLOC"
		default:
			tag = fmt.Sprintf("CORRUPT(%#x)", h.magic())
		}
		fmt.Fprintf(&b, "  %8d  %8d  %s\n", offset, h.size(), tag)
		sz := h.size()
		if sz == 0 {
			break // corrupted size would otherwise spin forever
		}
		offset += sz
	}
	return b.String()
}
