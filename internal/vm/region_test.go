package vm

import "testing"

func TestRegionlistDefineRoundsToPageBoundaries(t *testing.T) {
	var rl Regionlist
	if code := rl.Define(VA(0x00401003), 10, true, true, false); code != 0 {
		t.Fatalf("Define() = %v; want OK", code)
	}
	r, ok := rl.Find(VA(0x00401000))
	if !ok {
		t.Fatal("Find() did not locate the defined region at its rounded-down base")
	}
	if r.Vbase != VA(0x00401000) {
		t.Errorf("Vbase = %#x; want %#x", uint32(r.Vbase), 0x00401000)
	}
	// memsize(10) + remainder(3) = 13 bytes, rounds up to one page.
	if r.Npages != 1 {
		t.Errorf("Npages = %d; want 1", r.Npages)
	}
}

func TestRegionlistDefineRejectsNoPermissions(t *testing.T) {
	var rl Regionlist
	if code := rl.Define(VA(0x00401000), PageSize, false, false, false); code == 0 {
		t.Fatal("Define() with no permissions succeeded")
	}
}

func TestRegionlistFindMissAndHit(t *testing.T) {
	var rl Regionlist
	rl.Define(VA(0x00400000), 2*PageSize, true, false, true)
	rl.Define(VA(Userstack)-PageSize, PageSize, true, true, false)

	if _, ok := rl.Find(VA(0x00500000)); ok {
		t.Error("Find() located a region outside every defined range")
	}
	r, ok := rl.Find(VA(0x00400000) + PageSize/2)
	if !ok {
		t.Fatal("Find() failed to locate an address inside the first region")
	}
	if !r.Perms.Has(PermR) || r.Perms.Has(PermW) || !r.Perms.Has(PermX) {
		t.Errorf("unexpected perms for first region: %v", r.Perms)
	}
}

func TestRegionlistPrepareAndCompleteLoad(t *testing.T) {
	var rl Regionlist
	rl.Define(VA(0x00400000), PageSize, true, false, true) // read-execute only

	rl.PrepareLoad()
	r, _ := rl.Find(VA(0x00400000))
	if !r.Perms.Has(PermW) {
		t.Fatal("PrepareLoad() did not grant write access")
	}

	pt := NewPagetable(GoHeap{})
	rl.CompleteLoad(pt)

	r, _ = rl.Find(VA(0x00400000))
	if r.Perms.Has(PermW) {
		t.Error("CompleteLoad() did not restore the read-only permission")
	}
	if !r.Perms.Has(PermX) {
		t.Error("CompleteLoad() lost the execute permission")
	}
}
