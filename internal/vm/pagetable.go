package vm

import "vm161/internal/vmerr"

// SecondLevelAllocator is the kernel-heap collaborator spec.md §6 lists
// ("Kernel heap allocator for small control structures"), narrowed to the
// one thing Pagetable needs from it: a zero-initialized second-level
// table. GoHeap always succeeds; BudgetHeap lets tests force the
// OUT_OF_MEMORY path spec.md §4.2 requires ("Fails with OUT_OF_MEMORY if
// allocation fails") without actually exhausting process memory.
type SecondLevelAllocator interface {
	Alloc() (*[TableSize]PTE, bool)
}

// GoHeap is a SecondLevelAllocator backed directly by the Go allocator; it
// never reports failure.
type GoHeap struct{}

// Alloc implements SecondLevelAllocator.
func (GoHeap) Alloc() (*[TableSize]PTE, bool) {
	return new([TableSize]PTE), true
}

// BudgetHeap is a SecondLevelAllocator that fails once a fixed number of
// allocations have been handed out, for exercising OUT_OF_MEMORY paths in
// tests.
type BudgetHeap struct {
	Remaining int
}

// Alloc implements SecondLevelAllocator.
func (b *BudgetHeap) Alloc() (*[TableSize]PTE, bool) {
	if b.Remaining <= 0 {
		return nil, false
	}
	b.Remaining--
	return new([TableSize]PTE), true
}

// Pagetable is the two-level sparse page table of spec.md §4.2: a
// 1024-entry top level where each slot is either absent or owns a
// 1024-entry second level. A slot is present iff at least one PTE in its
// second level has ever been inserted; an absent slot semantically equals
// 1024 zero PTEs.
type Pagetable struct {
	heap SecondLevelAllocator
	top  [TableSize]*[TableSize]PTE
}

// NewPagetable returns an empty page table that allocates second-level
// tables through heap.
func NewPagetable(heap SecondLevelAllocator) *Pagetable {
	return &Pagetable{heap: heap}
}

// Insert computes T1/T2 for vaddr, lazily allocating the second level if
// absent, and stores pte at [T1][T2], overwriting any prior entry without
// notice (spec.md §4.2).
func (pt *Pagetable) Insert(vaddr VA, pte PTE) vmerr.Code {
	t1 := t1Index(vaddr)
	lvl := pt.top[t1]
	if lvl == nil {
		var ok bool
		lvl, ok = pt.heap.Alloc()
		if !ok {
			return vmerr.OutOfMemory
		}
		pt.top[t1] = lvl
	}
	lvl[t2Index(vaddr)] = pte
	return vmerr.OK
}

// Lookup returns the zero PTE if the second level is absent or the slot is
// zero; otherwise it returns the stored PTE (spec.md §4.2).
func (pt *Pagetable) Lookup(vaddr VA) PTE {
	lvl := pt.top[t1Index(vaddr)]
	if lvl == nil {
		return 0
	}
	return lvl[t2Index(vaddr)]
}

// ClearDirtyRange clears the DIRTY bit on every populated PTE within
// [vbase, vbase+npages*PageSize). When it reaches an absent second level
// it skips straight to the next second-level boundary instead of walking
// page by page, keeping the cost proportional to populated second-levels
// intersected with the range rather than to the range length (spec.md
// §4.2's performance contract; this is the corrected replacement for the
// original source's byte-step-1 bug noted in spec.md §9).
//
// Preconditions (spec.md §4.2): vbase and the range end must be
// page-aligned and the range must lie entirely below Kseg0Base. Both are
// invariants the caller (the region list) is responsible for maintaining,
// so violations panic rather than return an error.
func (pt *Pagetable) ClearDirtyRange(vbase VA, npages uint32) {
	if vbase%PageSize != 0 {
		panic("vm: ClearDirtyRange requires a page-aligned vbase")
	}
	vend := vbase + VA(npages)*PageSize
	if vend > Kseg0Base {
		panic("vm: ClearDirtyRange range crosses the kernel direct map")
	}
	for v := vbase; v < vend; {
		t1 := t1Index(v)
		lvl := pt.top[t1]
		if lvl == nil {
			// Skip to the next second-level boundary.
			v = VA(t1+1) << 22
			continue
		}
		t2 := t2Index(v)
		if lvl[t2] != 0 {
			lvl[t2] = lvl[t2].ClearDirty()
		}
		v += PageSize
	}
}

// forEachPopulated invokes fn for every (t1 index, second-level table)
// pair currently present, used by AddrSpace.Copy to walk the populated
// second-level tables without exposing the top-level array itself.
func (pt *Pagetable) forEachPopulated(fn func(t1 uint32, lvl *[TableSize]PTE)) {
	for i, lvl := range pt.top {
		if lvl != nil {
			fn(uint32(i), lvl)
		}
	}
}
