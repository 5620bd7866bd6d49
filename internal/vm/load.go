package vm

import "vm161/internal/vmerr"

// PrepareLoad relaxes every region already defined on this address space
// to read-write for the duration of an image load (spec.md §4.7), so that
// first-touch faults against, say, a region destined to be read-only
// (.rodata, .text) succeed while the loader is still writing it. A region
// defined after PrepareLoad and before the matching CompleteLoad starts
// at its own declared permissions: there is nothing to save or restore
// for a region that did not exist when the load began. PrepareLoad changes
// only region permissions; PTEs already in the page table keep their
// DIRTY bits.
func (as *AddrSpace) PrepareLoad() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.rl.PrepareLoad()
}

// CompleteLoad restores every region's declared permissions and, for any
// region that lost write access in doing so, clears the DIRTY bit on
// every already-populated PTE in that region's range (spec.md §4.7), then
// flushes the TLB. Without those steps a page touched during loading would
// keep its writable mapping in the TLB and page table even after the
// region became read-only, letting a later write through instead of
// faulting.
func (as *AddrSpace) CompleteLoad() vmerr.Code {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.rl.CompleteLoad(as.pt)
	as.tlb.FlushAll()
	return vmerr.OK
}
