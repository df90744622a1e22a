package processor

import (
	"github.com/ernestoguevaraa/celima-iot/internal/domain"
	"github.com/ernestoguevaraa/celima-iot/internal/state"
)

// slotSpec declares how one named PLC counter field is decoded and
// accumulated. The per-kind tables below replace the arithmetic that used to
// be repeated inside every processor.
type slotSpec struct {
	field string
	// alias is an alternative inbound key accepted when field is absent
	// (PLC programs have renamed fields across firmware revisions).
	alias  string
	width  domain.Width
	masked bool
	// maxDelta bounds a plausible advance between samples; larger deltas are
	// channel noise and contribute 0. Zero means unbounded.
	maxDelta uint16
	// scale multiplies each accepted delta (0 means 1).
	scale float64
}

// slotValue is the per-slot outcome of one message: the observed register and
// the shift accumulator after the update.
type slotValue struct {
	Raw     int
	Inst    uint16
	Corrupt bool
	Turno   float64
}

func readSlot(msg map[string]interface{}, sp slotSpec) (raw int, inst uint16, corrupt bool) {
	if !HasField(msg, sp.field) && sp.alias != "" {
		raw = IntField(msg, sp.alias)
	} else {
		raw = IntField(msg, sp.field)
	}
	r := uint16(raw)
	if sp.masked {
		return raw, domain.Mask15(r), domain.HighBit15(r)
	}
	return raw, r, false
}

// applySlots runs the seed-or-accumulate step for every slot of a kind. Must
// be called under the kind's shard lock (inside Store.WithState). On the
// first message for a key, or when the classified shift differs from the
// stored snapshot, every slot is reseeded and no delta is accumulated.
func applySlots(ds *state.DeviceState, shiftNow domain.Shift, specs []slotSpec, msg map[string]interface{}) map[string]slotValue {
	out := make(map[string]slotValue, len(specs))

	if !ds.Initialized || ds.Shift != shiftNow {
		ds.Slots = make(map[string]*state.Slot, len(specs))
		ds.Shift = shiftNow
		ds.Initialized = true
		for _, sp := range specs {
			raw, inst, corrupt := readSlot(msg, sp)
			sl := ds.Slot(sp.field)
			sl.LastRaw = inst
			sl.Acc = 0
			sl.Corrupt = corrupt
			out[sp.field] = slotValue{Raw: raw, Inst: inst, Corrupt: corrupt, Turno: 0}
		}
		return out
	}

	for _, sp := range specs {
		raw, inst, corrupt := readSlot(msg, sp)
		sl := ds.Slot(sp.field)
		d := domain.SafeDelta(sl.LastRaw, inst, sp.width, sp.maxDelta)
		scale := sp.scale
		if scale == 0 {
			scale = 1
		}
		sl.Acc += float64(d) * scale
		sl.LastRaw = inst
		sl.Corrupt = corrupt
		out[sp.field] = slotValue{Raw: raw, Inst: inst, Corrupt: corrupt, Turno: sl.Acc}
	}
	return out
}

// turno truncates a slot accumulator to the whole units published on the
// `_turno` fields.
func turno(v slotValue) uint32 {
	return uint32(v.Turno)
}
