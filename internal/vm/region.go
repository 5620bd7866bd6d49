package vm

import (
	"vm161/internal/util"
	"vm161/internal/vmerr"
)

// Perm is a single access permission bit.
type Perm uint8

// PermSet is a set over {R, W, X}, spec.md §3.
const (
	PermR Perm = 1 << iota
	PermW
	PermX
)

// PermSet is a bitmask of Perm values.
type PermSet uint8

// Has reports whether every bit in p is set in s.
func (s PermSet) Has(p Perm) bool { return s&PermSet(p) == PermSet(p) }

// Empty reports whether no permission bit is set.
func (s PermSet) Empty() bool { return s == 0 }

func permSet(r, w, x bool) PermSet {
	var s PermSet
	if r {
		s |= PermSet(PermR)
	}
	if w {
		s |= PermSet(PermW)
	}
	if x {
		s |= PermSet(PermX)
	}
	return s
}

// Region is a contiguous, page-aligned virtual range with a permission
// triple and, while a load is in progress, the permissions it will be
// restored to (spec.md §3). The source encodes the saved permissions by
// bit-shifting the live field; spec.md §9 calls that out as something not
// to replicate, so this keeps an explicit prior-permissions field instead.
type Region struct {
	Vbase      VA
	Npages     uint32
	Perms      PermSet
	hasSaved   bool
	savedPerms PermSet
}

// End returns the first virtual address past the region (half-open upper
// bound, spec.md §8).
func (r *Region) End() VA {
	return r.Vbase + VA(r.Npages)*PageSize
}

// Contains reports whether va falls within [Vbase, End()).
func (r *Region) Contains(va VA) bool {
	return va >= r.Vbase && va < r.End()
}

// Regionlist is the ordered, insertion-order sequence of regions owned by
// one address space (spec.md §4.3). A growable slice is used in place of
// the source's singly linked list: order is preserved and nothing is
// keyed by position, so this is purely a memory/performance choice
// (spec.md §9).
type Regionlist struct {
	regions []*Region
}

// Define rounds vbase down to a page boundary, rounds memsize up by the
// rounding remainder and then up to a page boundary, and appends the
// resulting region to the end of the list. It fails with InvalidArgument
// if r, w and x are all false. Overlap is the caller's (the loader's)
// responsibility and is not checked here (spec.md §4.3).
func (rl *Regionlist) Define(vbase VA, memsize uint32, r, w, x bool) vmerr.Code {
	perms := permSet(r, w, x)
	if perms.Empty() {
		return vmerr.InvalidArgument
	}
	remainder := uint32(vbase) - uint32(pageBase(vbase))
	memsize += remainder
	vbase = pageBase(vbase)
	npages := util.Roundup(memsize, uint32(PageSize)) / PageSize

	rl.regions = append(rl.regions, &Region{
		Vbase:  vbase,
		Npages: npages,
		Perms:  perms,
	})
	return vmerr.OK
}

// Find performs a linear scan and returns the first region whose range
// contains va (spec.md §4.3). Region order does not affect correctness
// because regions never overlap.
func (rl *Regionlist) Find(va VA) (*Region, bool) {
	for _, r := range rl.regions {
		if r.Contains(va) {
			return r, true
		}
	}
	return nil, false
}

// All returns the regions in insertion order. The caller must not retain
// the slice across a mutating call to Define.
func (rl *Regionlist) All() []*Region {
	return rl.regions
}

// PrepareLoad saves each region's live permissions and makes every region
// readable and writable, dropping execute, so first-touch faults during
// image loading succeed regardless of the region's eventual permissions
// (spec.md §4.3, §4.7). Idempotence is not required: callers must pair
// PrepareLoad with CompleteLoad.
func (rl *Regionlist) PrepareLoad() {
	for _, r := range rl.regions {
		r.savedPerms = r.Perms
		r.hasSaved = true
		r.Perms = PermSet(PermR) | PermSet(PermW)
	}
}

// CompleteLoad restores each region's saved permissions, then — for any
// region that lost write access — clears the DIRTY bit on every
// already-populated PTE in that region's range so that future writes trap
// as read-only violations (spec.md §4.3, §4.7). pt is the owning address
// space's page table.
func (rl *Regionlist) CompleteLoad(pt *Pagetable) {
	for _, r := range rl.regions {
		if r.hasSaved {
			r.Perms = r.savedPerms
			r.hasSaved = false
		}
		if !r.Perms.Has(PermW) {
			pt.ClearDirtyRange(r.Vbase, r.Npages)
		}
	}
}
