package diag

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/google/pprof/profile"

	"vm161/internal/frame"
)

func TestExportResidentSetRoundTrips(t *testing.T) {
	owned := []frame.PA{frame.PA(1 * frame.PageSize), frame.PA(5 * frame.PageSize)}

	var buf bytes.Buffer
	if err := ExportResidentSet(&buf, owned); err != nil {
		t.Fatalf("ExportResidentSet: %v", err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("pprof profiles are gzip-compressed: %v", err)
	}
	raw, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("reading decompressed profile: %v", err)
	}

	p, err := profile.Parse(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("profile.Parse: %v", err)
	}
	if len(p.Sample) != len(owned) {
		t.Fatalf("sample count = %d; want %d", len(p.Sample), len(owned))
	}
	for i, s := range p.Sample {
		pfn := s.NumLabel["pfn"][0]
		if want := int64(owned[i].PFN()); pfn != want {
			t.Errorf("sample %d pfn = %d; want %d", i, pfn, want)
		}
	}
}

func TestExportResidentSetEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportResidentSet(&buf, nil); err != nil {
		t.Fatalf("ExportResidentSet: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("ExportResidentSet produced no output for an empty frame set")
	}
}
