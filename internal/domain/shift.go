// Package domain contains core business entities for the Celima gateway.
package domain

import (
	"sync/atomic"
	"time"
)

// Shift identifies one of the three eight-hour production windows.
type Shift int

const (
	ShiftS1 Shift = 1 // 07:00–14:59:59
	ShiftS2 Shift = 2 // 15:00–22:59:59
	ShiftS3 Shift = 3 // 23:00–06:59:59
)

// ClassifyShift maps an instant to its production shift using the local-time
// hour carried by t. The mapping is total: every hour belongs to exactly one
// shift.
func ClassifyShift(t time.Time) Shift {
	h := t.Hour()
	switch {
	case h >= 7 && h < 15:
		return ShiftS1
	case h >= 15 && h < 23:
		return ShiftS2
	default:
		return ShiftS3
	}
}

// lastGlobalShift records the last shift observed process-wide. -1 means no
// shift has been observed yet.
var lastGlobalShift atomic.Int32

func init() {
	lastGlobalShift.Store(-1)
}

// DetectGlobalShiftChange returns true on the first call and whenever the
// observed shift differs from the previous observation. The latch is advisory:
// processors detect shift changes from their own stored snapshot, this exists
// for one-shot "shift rolled over" signals.
func DetectGlobalShiftChange(current Shift) bool {
	prev := lastGlobalShift.Load()
	if prev == int32(current) {
		return false
	}
	lastGlobalShift.Store(int32(current))
	return true
}

// ResetGlobalShift clears the process-wide shift latch. Test hook.
func ResetGlobalShift() {
	lastGlobalShift.Store(-1)
}
