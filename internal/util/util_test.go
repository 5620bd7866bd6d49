package util

import "testing"

func TestRounddown(t *testing.T) {
	specs := []struct {
		v, b, exp int
	}{
		{0, 4096, 0},
		{1, 4096, 0},
		{4095, 4096, 0},
		{4096, 4096, 4096},
		{4097, 4096, 4096},
		{8192, 4096, 8192},
	}
	for i, spec := range specs {
		if got := Rounddown(spec.v, spec.b); got != spec.exp {
			t.Errorf("[spec %d] Rounddown(%d, %d) = %d; want %d", i, spec.v, spec.b, got, spec.exp)
		}
	}
}

func TestRoundup(t *testing.T) {
	specs := []struct {
		v, b, exp int
	}{
		{0, 4096, 0},
		{1, 4096, 4096},
		{4096, 4096, 4096},
		{4097, 4096, 8192},
		{8192, 4096, 8192},
	}
	for i, spec := range specs {
		if got := Roundup(spec.v, spec.b); got != spec.exp {
			t.Errorf("[spec %d] Roundup(%d, %d) = %d; want %d", i, spec.v, spec.b, got, spec.exp)
		}
	}
}

func TestMin(t *testing.T) {
	if got := Min(3, 5); got != 3 {
		t.Errorf("Min(3, 5) = %d; want 3", got)
	}
	if got := Min(5, 3); got != 3 {
		t.Errorf("Min(5, 3) = %d; want 3", got)
	}
	if got := Min(uint32(7), uint32(7)); got != 7 {
		t.Errorf("Min(7, 7) = %d; want 7", got)
	}
}
