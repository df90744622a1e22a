package processor

import (
	"strconv"
	"time"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
	"github.com/ernestoguevaraa/celima-iot/internal/state"
)

// esmalteProcessor normalizes the glaze-line PLC. Same counter set as the
// dryer exit: masked 15-bit counts, clean 16-bit decisecond production time.
type esmalteProcessor struct {
	store *state.Store
	now   func() time.Time
}

var esmalteSlots = []slotSpec{
	{field: "cantidadProductos", width: domain.W15, masked: true},
	{field: "tiempoProduccion_ds", width: domain.W16, scale: 0.1},
	{field: "paradas", width: domain.W15, masked: true},
	{field: "tiempoParadas_s", width: domain.W15, masked: true},
}

func newEsmalteProcessor(cfg Config) *esmalteProcessor {
	return &esmalteProcessor{store: cfg.Store, now: cfg.Now}
}

func (p *esmalteProcessor) Process(msg map[string]interface{}, prefix string) []domain.Publication {
	nowT := p.now()
	shiftNow := domain.ClassifyShift(nowT)

	line := IntField(msg, "lineID")
	alarms := IntField(msg, "alarms")

	var vals map[string]slotValue
	p.store.WithState(domain.KindEsmalte, line, func(ds *state.DeviceState) {
		vals = applySlots(ds, shiftNow, esmalteSlots, msg)
	})

	qual := alarmPayload{Alarms: alarms, TimestampDevice: domain.Timestamp(nowT)}
	prod := buildLineCounterProduction(domain.KindEsmalte.MachineID(), shiftNow, vals, nowT)

	base := prefix + strconv.Itoa(line) + "/" + domain.KindEsmalte.Slug()
	return []domain.Publication{
		domain.MakePublication(base+"/alarms", qual),
		domain.MakePublication(base+"/production", prod),
	}
}
