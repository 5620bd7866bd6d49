package vm

import (
	"sync"

	"vm161/internal/frame"
	"vm161/internal/tlbdev"
	"vm161/internal/vmerr"
)

// AddrSpace is a single process's virtual memory state: a page table, a
// region list, and the frame/TLB collaborators needed to service faults
// against them (spec.md §4.4). Every exported method that reads or
// changes the page table, region list or owned frames takes the internal
// mutex (Activate and Deactivate touch only the TLB and do not), mirroring biscuit's Vm_t.Lock_pmap/Unlock_pmap convention of
// guarding pagemap access with an explicit lock rather than relying on a
// single-threaded caller.
type AddrSpace struct {
	mu     sync.Mutex
	pt     *Pagetable
	rl     Regionlist
	frames frame.Allocator
	tlb    *tlbdev.Gateway

	// owned records every frame this address space has allocated, so
	// Destroy can free them without walking the page table twice.
	owned []frame.PA
}

// NewAddrSpace creates an empty address space: no regions, no mappings
// (spec.md §4.4's create operation).
func NewAddrSpace(heap SecondLevelAllocator, frames frame.Allocator, tlb *tlbdev.Gateway) *AddrSpace {
	return &AddrSpace{
		pt:     NewPagetable(heap),
		frames: frames,
		tlb:    tlb,
	}
}

// DefineRegion adds a region to the address space (spec.md §4.3, §4.4).
func (as *AddrSpace) DefineRegion(vbase VA, memsize uint32, r, w, x bool) vmerr.Code {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.rl.Define(vbase, memsize, r, w, x)
}

// DefineStack adds the fixed-size, read-write, non-executable stack
// region ending at Userstack (spec.md §6).
func (as *AddrSpace) DefineStack() vmerr.Code {
	vbase := Userstack - VA(StackNpages)*PageSize
	return as.DefineRegion(vbase, StackNpages*PageSize, true, true, false)
}

// Activate flushes the TLB so that no mappings left behind by a
// previously active address space survive (spec.md §4.4, §4.6). The
// subsystem is single-address-space-at-a-time, so activating one
// implicitly deactivates whatever was active before.
func (as *AddrSpace) Activate() {
	as.tlb.FlushAll()
}

// Deactivate flushes the TLB on the way out, the same as Activate does on
// the way in, so that the context-switch code path is symmetric (spec.md
// §4.4): neither side of a switch leaves the outgoing address space's
// mappings behind for the incoming one to stumble over.
func (as *AddrSpace) Deactivate() {
	as.tlb.FlushAll()
}

// DumpRegions calls fn once per region, in insertion order, while holding
// the address space's lock. Supplements the production
// kprintf-based region tracing the distilled spec.md dropped.
func (as *AddrSpace) DumpRegions(fn func(vbase VA, npages uint32, r, w, x bool)) {
	as.mu.Lock()
	defer as.mu.Unlock()
	for _, reg := range as.rl.All() {
		fn(reg.Vbase, reg.Npages, reg.Perms.Has(PermR), reg.Perms.Has(PermW), reg.Perms.Has(PermX))
	}
}

// Owned returns the physical frames currently backing this address
// space's mappings, for diagnostics (internal/diag) that want to report
// on resident memory without walking the page table themselves.
func (as *AddrSpace) Owned() []frame.PA {
	as.mu.Lock()
	defer as.mu.Unlock()
	out := make([]frame.PA, len(as.owned))
	copy(out, as.owned)
	return out
}

// Destroy frees every frame this address space owns and drops its page
// table, returning the backing frames to the allocator (spec.md §4.4).
// The address space must not be used afterward.
func (as *AddrSpace) Destroy() {
	as.mu.Lock()
	defer as.mu.Unlock()
	for _, pa := range as.owned {
		as.frames.Free(pa)
	}
	as.owned = nil
	as.pt = nil
}

// Copy duplicates every region and every populated mapping into a fresh
// address space, allocating new frames and copying their contents rather
// than sharing the originals (spec.md §1 Non-goals excludes copy-on-write
// and frame sharing). The two address spaces are independent after Copy
// returns: mutating one's mappings never affects the other's.
func (as *AddrSpace) Copy(heap SecondLevelAllocator, tlb *tlbdev.Gateway) (*AddrSpace, vmerr.Code) {
	as.mu.Lock()
	defer as.mu.Unlock()

	dst := &AddrSpace{
		pt:     NewPagetable(heap),
		frames: as.frames,
		tlb:    tlb,
	}
	dst.rl.regions = make([]*Region, len(as.rl.regions))
	for i, r := range as.rl.regions {
		cp := *r
		dst.rl.regions[i] = &cp
	}

	var faultCode vmerr.Code
	as.pt.forEachPopulated(func(t1 uint32, lvl *[TableSize]PTE) {
		if faultCode != vmerr.OK {
			return
		}
		for t2, pte := range lvl {
			if pte.IsZero() {
				continue
			}
			newPA, ok := dst.frames.Alloc()
			if !ok {
				faultCode = vmerr.OutOfMemory
				return
			}
			copy(dst.frames.Read(newPA), as.frames.Read(pte.PFN()))
			vaddr := VA(t1)<<22 | VA(t2)<<12
			newPTE := EncodePTE(newPA, pte.IsValid(), pte.IsDirty())
			if code := dst.pt.Insert(vaddr, newPTE); code != vmerr.OK {
				faultCode = code
				return
			}
			dst.owned = append(dst.owned, newPA)
		}
	})
	if faultCode != vmerr.OK {
		for _, pa := range dst.owned {
			dst.frames.Free(pa)
		}
		return nil, faultCode
	}
	return dst, vmerr.OK
}
