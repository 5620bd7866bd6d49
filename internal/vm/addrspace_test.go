package vm

import (
	"testing"

	"vm161/internal/frame"
	"vm161/internal/tlbdev"
)

func newTestAddrSpace(t *testing.T, nframes int) (*AddrSpace, frame.Allocator) {
	t.Helper()
	a, err := frame.NewArena(nframes)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	gw := tlbdev.NewGateway(tlbdev.NewSimHardware(8), &tlbdev.SimIRQ{})
	return NewAddrSpace(GoHeap{}, a, gw), a
}

func TestAddrSpaceDefineRegionAndStack(t *testing.T) {
	as, _ := newTestAddrSpace(t, 16)
	if code := as.DefineRegion(VA(0x00400000), PageSize, true, false, true); code != 0 {
		t.Fatalf("DefineRegion: %v", code)
	}
	if code := as.DefineStack(); code != 0 {
		t.Fatalf("DefineStack: %v", code)
	}

	var regions int
	as.DumpRegions(func(VA, uint32, bool, bool, bool) { regions++ })
	if regions != 2 {
		t.Errorf("region count = %d; want 2", regions)
	}
}

func TestAddrSpaceDestroyFreesFrames(t *testing.T) {
	as, frames := newTestAddrSpace(t, 4)
	as.DefineRegion(VA(0x00400000), 2*PageSize, true, true, false)
	proc := singleProcessForTest{as: as}

	if code := Fault(proc, FaultWrite, VA(0x00400000)); code != 0 {
		t.Fatalf("Fault: %v", code)
	}
	if code := Fault(proc, FaultWrite, VA(0x00400000)+PageSize); code != 0 {
		t.Fatalf("Fault: %v", code)
	}

	as.Destroy()

	for i := 0; i < 4; i++ {
		if _, ok := frames.Alloc(); !ok {
			t.Fatalf("frame %d unavailable after Destroy() freed everything", i)
		}
	}
}

func TestAddrSpaceCopyIsIndependent(t *testing.T) {
	src, _ := newTestAddrSpace(t, 8)
	src.DefineRegion(VA(0x00400000), PageSize, true, true, false)
	proc := singleProcessForTest{as: src}
	if code := Fault(proc, FaultWrite, VA(0x00400000)); code != 0 {
		t.Fatalf("Fault: %v", code)
	}
	srcBuf := src.frames.Read(src.pt.Lookup(VA(0x00400000)).PFN())
	srcBuf[0] = 0x42

	gw := tlbdev.NewGateway(tlbdev.NewSimHardware(8), &tlbdev.SimIRQ{})
	dst, code := src.Copy(GoHeap{}, gw)
	if code != 0 {
		t.Fatalf("Copy: %v", code)
	}

	dstPTE := dst.pt.Lookup(VA(0x00400000))
	if !dstPTE.IsValid() {
		t.Fatal("Copy() did not carry over the populated mapping")
	}
	if dstPTE.PFN() == src.pt.Lookup(VA(0x00400000)).PFN() {
		t.Fatal("Copy() shared the source frame instead of duplicating it")
	}
	if got := dst.frames.Read(dstPTE.PFN())[0]; got != 0x42 {
		t.Fatalf("Copy() did not duplicate frame contents: got %#x", got)
	}

	srcBuf[0] = 0x99
	if got := dst.frames.Read(dstPTE.PFN())[0]; got != 0x42 {
		t.Fatal("mutating the source frame affected the copy")
	}
}

// singleProcessForTest mirrors cmd/vmctl's singleProcess without importing
// the main package.
type singleProcessForTest struct {
	as *AddrSpace
}

func (s singleProcessForTest) HasProcess() bool { return true }

func (s singleProcessForTest) AddrSpace() (*AddrSpace, bool) { return s.as, true }
