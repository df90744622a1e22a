package domain_test

import (
	"testing"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
)

func TestMask15(t *testing.T) {
	tests := []struct {
		name string
		in   uint16
		want uint16
	}{
		{name: "no flag bit", in: 0x0040, want: 0x0040},
		{name: "flag bit set", in: 0x8040, want: 0x0040},
		{name: "all bits", in: 0xFFFF, want: 0x7FFF},
		{name: "zero", in: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.Mask15(tt.in); got != tt.want {
				t.Errorf("Mask15(%#x) = %#x, want %#x", tt.in, got, tt.want)
			}
		})
	}
}

func TestHighBit15(t *testing.T) {
	if !domain.HighBit15(0x8040) {
		t.Error("HighBit15(0x8040) = false, want true")
	}
	if domain.HighBit15(0x7FFF) {
		t.Error("HighBit15(0x7FFF) = true, want false")
	}
}

func TestDelta(t *testing.T) {
	tests := []struct {
		name  string
		prev  uint16
		curr  uint16
		width domain.Width
		want  uint16
	}{
		{name: "forward W15", prev: 10, curr: 13, width: domain.W15, want: 3},
		{name: "wrap W15", prev: 32767, curr: 0, width: domain.W15, want: 1},
		{name: "wrap W15 past zero", prev: 32767, curr: 2, width: domain.W15, want: 3},
		{name: "forward W16", prev: 100, curr: 200, width: domain.W16, want: 100},
		{name: "wrap W16", prev: 65535, curr: 5, width: domain.W16, want: 6},
		{name: "equal", prev: 42, curr: 42, width: domain.W15, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.Delta(tt.prev, tt.curr, tt.width); got != tt.want {
				t.Errorf("Delta(%d, %d) = %d, want %d", tt.prev, tt.curr, got, tt.want)
			}
		})
	}
}

func TestSafeDelta(t *testing.T) {
	tests := []struct {
		name         string
		prev         uint16
		curr         uint16
		width        domain.Width
		maxPlausible uint16
		want         uint16
	}{
		{name: "within bound", prev: 5, curr: 30, width: domain.W16, maxPlausible: 100, want: 25},
		{name: "implausible jump", prev: 5, curr: 5000, width: domain.W15, maxPlausible: 200, want: 0},
		{name: "no bound passes anything", prev: 5, curr: 5000, width: domain.W15, want: 4995},
		{name: "wrap within bound", prev: 32767, curr: 0, width: domain.W15, maxPlausible: 10, want: 1},
		{name: "exactly at bound", prev: 0, curr: 200, width: domain.W15, maxPlausible: 200, want: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.SafeDelta(tt.prev, tt.curr, tt.width, tt.maxPlausible)
			if got != tt.want {
				t.Errorf("SafeDelta(%d, %d, max=%d) = %d, want %d",
					tt.prev, tt.curr, tt.maxPlausible, got, tt.want)
			}
		})
	}
}

// A monotonically advancing real counter observed through W15 arithmetic must
// reconstruct the true advance across wraps.
func TestDelta_WrapSurvivalSequence(t *testing.T) {
	samples := []uint16{32700, 32760, 4, 60, 120}
	var total uint32
	for i := 1; i < len(samples); i++ {
		total += uint32(domain.Delta(samples[i-1], samples[i], domain.W15))
	}
	if want := uint32(32768 + 120 - 32700); total != want {
		t.Errorf("accumulated advance = %d, want %d", total, want)
	}
}
