// Package suballoc implements a binary-buddy memory suballocator: a single
// contiguous, preallocated byte arena serviced by variable-size Alloc/Free
// calls without further appeals to the host allocator until Teardown.
//
// Free blocks are threaded through a cyclic doubly-linked list whose next
// and prev links live inside the blocks themselves, addressed by offset
// into the arena rather than by pointer. Allocation does a best-fit walk of
// the free list followed by recursive halving; free does an address-ordered
// insert followed by O(1) buddy coalescing via the offset/size parity rule.
//
// The allocator is single-threaded and non-reentrant: callers embedding it
// in a concurrent program must serialise Alloc/Free externally.
package suballoc
