package suballoc

import (
	"math/bits"
	"testing"
)

// assertInvariants checks the structural invariants that must hold between
// any two public calls against the allocator's current state.
func assertInvariants(t *testing.T, a *Allocator) {
	t.Helper()
	assertTile(t, a)
	assertListSound(t, a)
	assertHeadMinimal(t, a)
}

// assertTile walks the block chain from offset 0 by offset += size and
// checks it tiles the arena exactly, every header carries a valid magic,
// every size is a power of two >= headerSize, and every offset is a
// multiple of its own size (buddy alignment).
func assertTile(t *testing.T, a *Allocator) {
	t.Helper()
	var offset uint32
	for offset < a.memorySize {
		h := a.headerAt(offset)
		m := h.magic()
		if m != magicFree && m != magicAlloc {
			t.Fatalf("block at %d has invalid magic %#x", offset, m)
		}
		sz := h.size()
		if sz < headerSize || bits.OnesCount32(sz) != 1 {
			t.Fatalf("block at %d has non-power-of-two size %d", offset, sz)
		}
		if offset%sz != 0 {
			t.Fatalf("block at %d (size %d) is not buddy-aligned", offset, sz)
		}
		offset += sz
	}
	if offset != a.memorySize {
		t.Fatalf("blocks do not tile arena: reached %d, want %d", offset, a.memorySize)
	}
}

// assertListSound checks that traversing next from freeListHead visits
// exactly the free blocks, that prev is its exact inverse, and that both
// traversals terminate by returning to the start.
func assertListSound(t *testing.T, a *Allocator) {
	t.Helper()

	wantFree := map[uint32]bool{}
	var offset uint32
	for offset < a.memorySize {
		h := a.headerAt(offset)
		if h.magic() == magicFree {
			wantFree[offset] = true
		}
		offset += h.size()
	}

	gotForward := map[uint32]bool{}
	cur := a.freeListHead
	for i := 0; ; i++ {
		if i > len(wantFree)+1 {
			t.Fatalf("free list forward traversal did not terminate")
		}
		gotForward[cur] = true
		next := a.headerAt(cur).next()
		if a.headerAt(next).prev() != cur {
			t.Fatalf("free block %d has prev %d, want %d", next, a.headerAt(next).prev(), cur)
		}
		if next == a.freeListHead {
			break
		}
		cur = next
	}
	if len(gotForward) != len(wantFree) {
		t.Fatalf("free list has %d blocks via next-traversal, want %d", len(gotForward), len(wantFree))
	}
	for o := range gotForward {
		if !wantFree[o] {
			t.Fatalf("offset %d reached via next-traversal is not free", o)
		}
	}

	gotBackward := map[uint32]bool{}
	cur = a.freeListHead
	for i := 0; ; i++ {
		if i > len(wantFree)+1 {
			t.Fatalf("free list backward traversal did not terminate")
		}
		gotBackward[cur] = true
		prev := a.headerAt(cur).prev()
		if prev == a.freeListHead {
			break
		}
		cur = prev
	}
	if len(gotBackward) != len(wantFree) {
		t.Fatalf("free list has %d blocks via prev-traversal, want %d", len(gotBackward), len(wantFree))
	}
}

// assertHeadMinimal checks that freeListHead is the minimum offset among
// all free blocks.
func assertHeadMinimal(t *testing.T, a *Allocator) {
	t.Helper()
	var offset, min uint32
	found := false
	for offset < a.memorySize {
		h := a.headerAt(offset)
		if h.magic() == magicFree {
			if !found || offset < min {
				min, found = offset, true
			}
		}
		offset += h.size()
	}
	if found && min != a.freeListHead {
		t.Fatalf("freeListHead is %d, want minimum free offset %d", a.freeListHead, min)
	}
}
