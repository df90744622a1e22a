package processor

import (
	"strconv"
	"time"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
	"github.com/ernestoguevaraa/celima-iot/internal/state"
)

// calidadProcessor accumulates the quality station's pre-aggregated box
// counts per shift. Unlike the counter machines, the station reports interval
// totals every three minutes, so increments add directly — no wrap
// arithmetic. The legacy per-box event format is still accepted.
type calidadProcessor struct {
	store *state.Store
	now   func() time.Time
}

const (
	slotExtraC1   = "extra_c1"
	slotExtraC2   = "extra_c2"
	slotComercial = "comercial"
	slotQuebrados = "quebrados"
)

var calidadSlotNames = []string{slotExtraC1, slotExtraC2, slotComercial, slotQuebrados}

func newCalidadProcessor(cfg Config) *calidadProcessor {
	return &calidadProcessor{store: cfg.Store, now: cfg.Now}
}

type calidadProduction struct {
	MaquinaID       int    `json:"maquina_id"`
	TimestampDevice string `json:"timestamp_device"`
	Turno           int    `json:"turno"`
	LineID          int    `json:"lineID"`
	ExtraC1         uint64 `json:"extra_c1"`
	ExtraC2         uint64 `json:"extra_c2"`
	Comercial       uint64 `json:"comercial"`
	Quebrados       uint64 `json:"quebrados"`
}

// calidadIncrements reads either payload generation into the four category deltas.
func calidadIncrements(msg map[string]interface{}) (q1, q2, q6, broken uint64) {
	if HasField(msg, "boxesQ1") {
		// 3-minute interval totals
		q1 = uint64(IntField(msg, "boxesQ1"))
		q2 = uint64(IntField(msg, "boxesQ2"))
		q6 = uint64(IntField(msg, "boxesQ6"))
		broken = uint64(IntField(msg, "totalBroken"))
		return
	}

	if HasField(msg, "cajaCalidad") {
		// legacy single-box event; unknown quality codes are dropped
		switch IntField(msg, "cajaCalidad") {
		case 1:
			q1 = 1
		case 2:
			q2 = 1
		case 6:
			q6 = 1
		}
		quebrados := IntField(msg, "quebrados")
		if !HasField(msg, "quebrados") {
			quebrados = IntField(msg, "quebrado")
		}
		if quebrados > 0 {
			broken = uint64(quebrados)
		}
	}
	return
}

func (p *calidadProcessor) Process(msg map[string]interface{}, prefix string) []domain.Publication {
	nowT := p.now()
	shiftNow := domain.ClassifyShift(nowT)

	line := IntField(msg, "lineID")
	dq1, dq2, dq6, dBroken := calidadIncrements(msg)

	var q1, q2, q6, broken uint64
	p.store.WithState(domain.KindCalidad, line, func(ds *state.DeviceState) {
		if !ds.Initialized || ds.Shift != shiftNow {
			ds.Slots = make(map[string]*state.Slot, len(calidadSlotNames))
			ds.Shift = shiftNow
			ds.Initialized = true
		}

		ds.Slot(slotExtraC1).Acc += float64(dq1)
		ds.Slot(slotExtraC2).Acc += float64(dq2)
		ds.Slot(slotComercial).Acc += float64(dq6)
		ds.Slot(slotQuebrados).Acc += float64(dBroken)

		q1 = uint64(ds.Slot(slotExtraC1).Acc)
		q2 = uint64(ds.Slot(slotExtraC2).Acc)
		q6 = uint64(ds.Slot(slotComercial).Acc)
		broken = uint64(ds.Slot(slotQuebrados).Acc)
	})

	prod := calidadProduction{
		MaquinaID:       domain.KindCalidad.MachineID(),
		TimestampDevice: domain.Timestamp(nowT),
		Turno:           int(shiftNow),
		LineID:          line,
		ExtraC1:         q1,
		ExtraC2:         q2,
		Comercial:       q6,
		Quebrados:       broken,
	}

	topic := prefix + strconv.Itoa(line) + "/" + domain.KindCalidad.Slug() + "/production"
	return []domain.Publication{domain.MakePublication(topic, prod)}
}
