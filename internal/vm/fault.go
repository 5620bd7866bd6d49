package vm

import "vm161/internal/vmerr"

// FaultKind classifies why the TLB miss handler invoked Fault, mirroring
// the three trap kinds spec.md §4.5 distinguishes: an ordinary read miss,
// an ordinary write miss, and a write that hit a valid-but-read-only PTE
// (the DIRTY-bit trick: such a PTE is left in the table on purpose so a
// write against it traps here instead of succeeding silently).
type FaultKind int

const (
	FaultRead FaultKind = iota
	FaultWrite
	FaultReadonly
)

// CurrentProcess supplies the two pieces of caller context spec.md §4.5
// and §6 require before a fault can be serviced: whether a process is
// running at all, and which address space it owns. Both checks are kept
// distinct rather than collapsed into one nil check, matching the
// original fault handler's separate curproc==NULL and proc_getas()==NULL
// guards — the two conditions arise at different points during boot and
// shutdown. Either one failing makes Fault return ProtectionFault.
type CurrentProcess interface {
	// HasProcess reports whether a process is currently executing. It is
	// false only during early boot and late shutdown.
	HasProcess() bool
	// AddrSpace returns the current process's address space. ok is false
	// if the process has no address space yet (also a boot-time-only
	// condition).
	AddrSpace() (as *AddrSpace, ok bool)
}

// Fault services a TLB-miss page fault for vaddr. It returns
// ProtectionFault if no process or no address space is current, and
// otherwise delegates to the address space's own fault handling under its
// lock (spec.md §4.5).
func Fault(proc CurrentProcess, kind FaultKind, vaddr VA) vmerr.Code {
	if !proc.HasProcess() {
		return vmerr.ProtectionFault
	}
	as, ok := proc.AddrSpace()
	if !ok {
		return vmerr.ProtectionFault
	}
	return as.fault(kind, vaddr)
}

// fault implements the per-address-space half of spec.md §4.5's
// algorithm:
//
//  1. A READONLY-trapped fault always means the page was intentionally
//     left non-writable by a prior CompleteLoad: reject it outright,
//     regardless of what the region's live permissions say now.
//  2. Any other kind must be READ or WRITE; reject anything else with
//     INVALID_ARGUMENT.
//  3. Round the faulting address down to its containing page.
//  4. Find the region it falls in; PROTECTION_FAULT if none does.
//  5. If the page table already has a valid entry for this page, the
//     fault was a TLB miss with a live mapping: just refill the TLB,
//     regardless of whether the fault was a read or a write.
//  6. Otherwise this is a first touch: allocate and zero a frame, insert
//     a PTE with DIRTY set iff the region currently has WRITE, and
//     refill the TLB. A first touch always succeeds: the region's own
//     permissions, not the fault kind, are what gate future writes.
func (as *AddrSpace) fault(kind FaultKind, vaddr VA) vmerr.Code {
	as.mu.Lock()
	defer as.mu.Unlock()

	switch kind {
	case FaultReadonly:
		return vmerr.ProtectionFault
	case FaultRead, FaultWrite:
	default:
		return vmerr.InvalidArgument
	}

	page := pageBase(vaddr)
	region, ok := as.rl.Find(page)
	if !ok {
		return vmerr.ProtectionFault
	}

	pte := as.pt.Lookup(page)
	if pte.IsValid() {
		as.tlb.Refill(uint32(page), uint32(pte))
		return vmerr.OK
	}

	pa, ok := as.frames.Alloc()
	if !ok {
		return vmerr.OutOfMemory
	}
	buf := as.frames.Read(pa)
	for i := range buf {
		buf[i] = 0
	}

	newPTE := EncodePTE(pa, true, region.Perms.Has(PermW))
	if code := as.pt.Insert(page, newPTE); code != vmerr.OK {
		as.frames.Free(pa)
		return code
	}
	as.owned = append(as.owned, pa)

	as.tlb.Refill(uint32(page), uint32(newPTE))
	return vmerr.OK
}
