// Command vmctl drives the virtual memory subsystem outside of any real
// kernel: it builds one or more simulated address spaces, defines regions
// in them, touches pages to exercise the fault handler, and reports what
// happened. It exists for the same reason chentry exists next to the
// kernel it patches — a small standalone tool built from the same
// packages, not shipped inside the kernel image.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"vm161/internal/diag"
	"vm161/internal/frame"
	"vm161/internal/tlbdev"
	"vm161/internal/vm"
)

func main() {
	nspaces := flag.Int("stress", 1, "number of address spaces to simulate concurrently")
	npages := flag.Int("pages", 16, "data pages to touch per address space")
	nframes := flag.Int("frames", 4096, "total physical frames in the simulated arena")
	verbose := flag.Bool("v", false, "dump region layout for address space 0")
	profilePath := flag.String("profile", "", "write a pprof resident-set profile for address space 0 to this path")
	flag.Parse()

	arena, err := frame.NewArena(*nframes)
	if err != nil {
		log.Fatal(err)
	}
	defer arena.Close()

	spaces := make([]*vm.AddrSpace, *nspaces)
	var faults int64

	var g errgroup.Group
	for i := 0; i < *nspaces; i++ {
		i := i
		g.Go(func() error {
			as, n, err := runOne(arena, *npages)
			spaces[i] = as
			atomic.AddInt64(&faults, int64(n))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}

	p := message.NewPrinter(language.English)
	p.Printf("%d address space(s), %d page-fault(s) serviced\n", *nspaces, faults)

	if *verbose && len(spaces) > 0 {
		spaces[0].DumpRegions(func(vbase vm.VA, npages uint32, r, w, x bool) {
			fmt.Printf("  region %#08x +%d pages r=%v w=%v x=%v\n", uint32(vbase), npages, r, w, x)
		})
	}

	if *profilePath != "" && len(spaces) > 0 {
		f, err := os.Create(*profilePath)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		if err := diag.ExportResidentSet(f, spaces[0].Owned()); err != nil {
			log.Fatal(err)
		}
	}
}

// singleProcess is the CurrentProcess collaborator vm.Fault expects,
// standing in for a scheduler that always has exactly one process with
// one address space current.
type singleProcess struct {
	as *vm.AddrSpace
}

func (s singleProcess) HasProcess() bool { return true }

func (s singleProcess) AddrSpace() (*vm.AddrSpace, bool) { return s.as, true }

// runOne builds one address space, defines a data region and a stack,
// activates it, and touches npages of the data region, returning the
// number of faults serviced (always npages+1, counting the stack's first
// touch).
func runOne(frames frame.Allocator, npages int) (*vm.AddrSpace, int, error) {
	hw := tlbdev.NewSimHardware(64)
	irq := &tlbdev.SimIRQ{}
	gw := tlbdev.NewGateway(hw, irq)

	as := vm.NewAddrSpace(vm.GoHeap{}, frames, gw)

	const dataBase = vm.VA(0x00400000)
	if code := as.DefineRegion(dataBase, uint32(npages)*vm.PageSize, true, true, false); code != 0 {
		return nil, 0, fmt.Errorf("define data region: %s", code)
	}
	if code := as.DefineStack(); code != 0 {
		return nil, 0, fmt.Errorf("define stack: %s", code)
	}

	as.Activate()
	proc := singleProcess{as: as}

	serviced := 0
	for i := 0; i < npages; i++ {
		vaddr := dataBase + vm.VA(i)*vm.PageSize
		if code := vm.Fault(proc, vm.FaultWrite, vaddr); code != 0 {
			return nil, 0, fmt.Errorf("fault at %#x: %s", uint32(vaddr), code)
		}
		serviced++
	}
	if code := vm.Fault(proc, vm.FaultWrite, vm.Userstack-vm.PageSize); code != 0 {
		return nil, 0, fmt.Errorf("stack fault: %s", code)
	}
	serviced++

	return as, serviced, nil
}
