// Package diag exports a process's resident frame set in pprof's profile
// format, so the existing pprof toolchain (go tool pprof, the pprof web
// UI) can be pointed at a running address space's memory footprint the
// same way it is pointed at a CPU or heap profile.
package diag

import (
	"io"

	"github.com/google/pprof/profile"

	"vm161/internal/frame"
)

// ExportResidentSet writes a pprof profile in which each sample
// represents one resident frame, labeled with its physical frame number,
// to w. The profile has no call-stack information: this subsystem has no
// stack unwinder, so every sample is a single line-less leaf.
func ExportResidentSet(w io.Writer, owned []frame.PA) error {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "frames", Unit: "count"},
		},
		PeriodType: &profile.ValueType{Type: "frames", Unit: "count"},
		Period:     1,
	}
	for _, pa := range owned {
		p.Sample = append(p.Sample, &profile.Sample{
			Value: []int64{1},
			NumLabel: map[string][]int64{
				"pfn": {int64(pa.PFN())},
			},
			NumUnit: map[string][]string{
				"pfn": {"frames"},
			},
		})
	}
	return p.Write(w)
}
