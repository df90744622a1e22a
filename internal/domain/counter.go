package domain

// PLC counters arrive as absolute 16-bit register snapshots. Two encodings
// exist in the field: a full modulo-65536 counter (W16), and a modulo-32768
// counter whose high bit is an unrelated firmware flag (W15). The high bit is
// masked before any arithmetic; its pre-mask value is reported separately as a
// corruption indicator.

// Width selects the modulus of a PLC counter register.
type Width uint8

const (
	// W15 is a 15-bit counter; bit 15 is a firmware flag, not counter data.
	W15 Width = iota
	// W16 is a full 16-bit counter with no flag bit.
	W16
)

const (
	mask15 = 0x7FFF
	mod15  = 0x8000
)

// Mask15 strips the firmware flag bit from a W15 register.
func Mask15(x uint16) uint16 {
	return x & mask15
}

// HighBit15 reports whether the firmware flag bit is set in the raw register.
func HighBit15(x uint16) bool {
	return x&mod15 != 0
}

// Delta returns the modular advance from prev to curr for the given width.
// Inputs to a W15 delta must already be masked.
func Delta(prev, curr uint16, w Width) uint16 {
	if curr >= prev {
		return curr - prev
	}
	if w == W15 {
		return (mod15 + curr - prev) & mask15
	}
	// uint16 subtraction wraps modulo 65536
	return curr - prev
}

// SafeDelta applies Delta, discarding implausible jumps. A delta greater than
// maxPlausible is channel noise and contributes 0 to the accumulator.
// maxPlausible of 0 means no bound.
func SafeDelta(prev, curr uint16, w Width, maxPlausible uint16) uint16 {
	d := Delta(prev, curr, w)
	if maxPlausible > 0 && d > maxPlausible {
		return 0
	}
	return d
}
