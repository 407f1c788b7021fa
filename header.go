package suballoc

import "unsafe"

const (
	// headerSize is the number of bytes every block reserves for its
	// header: magic, size, next, prev, each a 32-bit field.
	headerSize = 16

	// magicFree tags a block that is currently on the free list.
	magicFree uint32 = 0xDEADBEEF
	// magicAlloc tags a block currently handed out to a caller.
	magicAlloc uint32 = 0xBEEFDEAD

	// minRegionSize is the largest payload size Alloc refuses: requests of
	// minRegionSize bytes or fewer are rejected.
	minRegionSize = 4
)

// header is a short-lived typed view over a block's header bytes inside the
// arena. It borrows the arena's backing storage; it must not outlive a
// mutation that resizes or frees that storage.
type header struct {
	ptr unsafe.Pointer
}

func (h header) magic() uint32     { return *(*uint32)(h.ptr) }
func (h header) setMagic(m uint32) { *(*uint32)(h.ptr) = m }

func (h header) size() uint32     { return *(*uint32)(unsafe.Add(h.ptr, 4)) }
func (h header) setSize(s uint32) { *(*uint32)(unsafe.Add(h.ptr, 4)) = s }

func (h header) next() uint32     { return *(*uint32)(unsafe.Add(h.ptr, 8)) }
func (h header) setNext(o uint32) { *(*uint32)(unsafe.Add(h.ptr, 8)) = o }

func (h header) prev() uint32     { return *(*uint32)(unsafe.Add(h.ptr, 12)) }
func (h header) setPrev(o uint32) { *(*uint32)(unsafe.Add(h.ptr, 12)) = o }
