// Package frame models the physical frame allocator that spec.md §6 treats
// as an external collaborator: "returns/frees aligned page-sized physical
// frames ... specified here only by its contract." There is no bootloader
// memory map or MIPS core underneath this repository, so Arena backs the
// contract with a real mmap'd arena of host memory, the same
// freelist-over-a-flat-array shape as biscuit's mem.Physmem_t, minus the
// per-CPU partitioning and reference counting this subsystem doesn't need
// (no frame sharing between address spaces, per spec.md §1 Non-goals).
package frame

import (
	"sync"

	"golang.org/x/sys/unix"
)

// PageShift is the base-2 exponent of the page size.
const PageShift = 12

// PageSize is the size of a single page/frame in bytes.
const PageSize = 1 << PageShift

// PA is a physical address. Frame-aligned PAs are the unit of allocation.
type PA uintptr

// PFN returns the physical frame number for a frame-aligned address.
func (p PA) PFN() uint32 { return uint32(p >> PageShift) }

// Valid reports whether p is non-zero; zero is never a valid frame address
// returned by an Allocator (spec.md §3: "any PTE with VALID set must have
// a nonzero PFN").
func (p PA) Valid() bool { return p != 0 }

// Allocator is the narrow interface the rest of this subsystem depends on.
// Implementations must not block (spec.md §5).
type Allocator interface {
	// Alloc returns a fresh, page-aligned physical frame. Contents are not
	// guaranteed to be zero. ok is false if no frame is available.
	Alloc() (pa PA, ok bool)
	// Free returns pa, previously returned by Alloc, to the pool.
	Free(pa PA)
	// Read returns a mutable view of the bytes backing pa, sized PageSize.
	// This stands in for the direct-mapped kernel window (KSEG0) that a
	// real kernel would use to read/write a frame without a per-frame
	// mapping (spec.md GLOSSARY: "Direct map / KSEG0").
	Read(pa PA) []byte
}

// Arena is a host-backed implementation of Allocator. It reserves a single
// anonymous mmap region up front and serves frames from a singly linked
// free list of frame indices kept in a side array (next), after
// mem.Physmem_t's free-list-of-indices design.
type Arena struct {
	mu      sync.Mutex
	base    []byte
	nframes int
	freeHd  int32 // index of first free frame, -1 if none
	next    []int32
	used    []bool
}

// NewArena reserves nframes page-sized frames of backing storage.
func NewArena(nframes int) (*Arena, error) {
	if nframes <= 0 {
		nframes = 1
	}
	size := nframes * PageSize
	base, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	a := &Arena{
		base:    base,
		nframes: nframes,
		next:    make([]int32, nframes),
		used:    make([]bool, nframes),
	}
	for i := 0; i < nframes; i++ {
		if i == nframes-1 {
			a.next[i] = -1
		} else {
			a.next[i] = int32(i + 1)
		}
	}
	a.freeHd = 0
	return a, nil
}

// Close releases the arena's backing storage.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.base == nil {
		return nil
	}
	err := unix.Munmap(a.base)
	a.base = nil
	return err
}

func (a *Arena) addrOf(idx int32) PA {
	// Offset by PageSize so that 0 stays a reserved "no mapping" sentinel
	// as spec.md §3 requires ("a zero PTE means 'no mapping'").
	return PA((int(idx) + 1) * PageSize)
}

func (a *Arena) idxOf(pa PA) int32 {
	return int32(int(pa)/PageSize - 1)
}

// Alloc implements Allocator.
func (a *Arena) Alloc() (PA, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.freeHd == -1 {
		return 0, false
	}
	idx := a.freeHd
	a.freeHd = a.next[idx]
	a.used[idx] = true
	return a.addrOf(idx), true
}

// Free implements Allocator.
func (a *Arena) Free(pa PA) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := a.idxOf(pa)
	if idx < 0 || int(idx) >= a.nframes || !a.used[idx] {
		panic("frame: double free or invalid address")
	}
	a.used[idx] = false
	a.next[idx] = a.freeHd
	a.freeHd = idx
}

// Read implements Allocator.
func (a *Arena) Read(pa PA) []byte {
	idx := a.idxOf(pa)
	if idx < 0 || int(idx) >= a.nframes {
		panic("frame: address out of range")
	}
	off := int(idx) * PageSize
	return a.base[off : off+PageSize]
}
