package processor

import (
	"strconv"
	"time"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
	"github.com/ernestoguevaraa/celima-iot/internal/state"
)

// pressProcessor handles both hydraulic presses. The two machines share wire
// format and arithmetic; they differ only in machine id, topic slug and the
// pisada-to-pieces factor.
type pressProcessor struct {
	kind    domain.DeviceKind
	store   *state.Store
	factors domain.PressFactors
	now     func() time.Time
}

var pressSlots = []slotSpec{
	{field: "cantidadProductos", width: domain.W15, masked: true},
	{field: "tiempoProduccion_ds", width: domain.W16, scale: 0.1},
	{field: "paradas", width: domain.W15, masked: true},
	{field: "tiempoParadas_s", width: domain.W15, masked: true},
}

func newPressProcessor(kind domain.DeviceKind, cfg Config) *pressProcessor {
	return &pressProcessor{kind: kind, store: cfg.Store, factors: cfg.Factors, now: cfg.Now}
}

// pressProduction is the press production payload. Field names are the wire
// contract consumed by the plant dashboards.
type pressProduction struct {
	MaquinaID int `json:"maquina_id"`
	Turno     int `json:"turno"`
	LineID    int `json:"lineID"`

	CantidadProductosRaw             int    `json:"cantidadProductos_raw"`
	CantidadProductosInstantaneo     uint16 `json:"cantidadProductos_instantaneo"`
	Bit15CorruptionCantidadProductos bool   `json:"bit15_corruption_cantidadProductos"`

	CantidadPisadasTurno   uint32 `json:"cantidadPisadas_turno"`
	CantidadPisadasMin     uint32 `json:"cantidadPisadas_min"`
	CantidadProductosTurno uint32 `json:"cantidadProductos_turno"`

	TiempoProduccionDsInstantaneo uint16 `json:"tiempoProduccion_ds_instantaneo"`
	TiempoProduccionTurnoS        uint32 `json:"tiempoProduccion_turno_s"`

	ParadasRaw             int    `json:"paradas_raw"`
	ParadasInstantaneo     uint16 `json:"paradas_instantaneo"`
	ParadasTurno           uint32 `json:"paradas_turno"`
	Bit15CorruptionParadas bool   `json:"bit15_corruption_paradas"`

	TiempoParadasRaw             int    `json:"tiempoParadas_raw"`
	TiempoParadasInstantaneo     uint16 `json:"tiempoParadas_instantaneo"`
	TiempoParadasTurnoS          uint32 `json:"tiempoParadas_turno_s"`
	Bit15CorruptionTiempoParadas bool   `json:"bit15_corruption_tiempoParadas"`

	TimestampDevice string `json:"timestamp_device"`
}

func (p *pressProcessor) factorFor(line int) int {
	if p.kind == domain.KindPrensaHidraulica2 {
		return p.factors.Press2
	}
	return p.factors.ForLine(line)
}

func (p *pressProcessor) Process(msg map[string]interface{}, prefix string) []domain.Publication {
	nowT := p.now()
	shiftNow := domain.ClassifyShift(nowT)

	line := IntField(msg, "lineID")
	alarms := IntField(msg, "alarms")

	var vals map[string]slotValue
	p.store.WithState(p.kind, line, func(ds *state.DeviceState) {
		vals = applySlots(ds, shiftNow, pressSlots, msg)
	})

	pisadas := vals["cantidadProductos"]
	prodTime := vals["tiempoProduccion_ds"]
	paradas := vals["paradas"]
	stopTime := vals["tiempoParadas_s"]

	// pisadas per minute over the shift's accumulated production time
	var rate float64
	if prodTime.Turno > 1.0 {
		rate = pisadas.Turno / (prodTime.Turno / 60.0)
	}

	qual := alarmPayload{
		Alarms:          alarms,
		TimestampDevice: domain.Timestamp(nowT),
	}

	prod := pressProduction{
		MaquinaID: p.kind.MachineID(),
		Turno:     int(shiftNow),
		LineID:    line,

		CantidadProductosRaw:             pisadas.Raw,
		CantidadProductosInstantaneo:     pisadas.Inst,
		Bit15CorruptionCantidadProductos: pisadas.Corrupt,

		CantidadPisadasTurno:   turno(pisadas),
		CantidadPisadasMin:     uint32(rate),
		CantidadProductosTurno: turno(pisadas) * uint32(p.factorFor(line)),

		TiempoProduccionDsInstantaneo: prodTime.Inst,
		TiempoProduccionTurnoS:        turno(prodTime),

		ParadasRaw:             paradas.Raw,
		ParadasInstantaneo:     paradas.Inst,
		ParadasTurno:           turno(paradas),
		Bit15CorruptionParadas: paradas.Corrupt,

		TiempoParadasRaw:             stopTime.Raw,
		TiempoParadasInstantaneo:     stopTime.Inst,
		TiempoParadasTurnoS:          turno(stopTime),
		Bit15CorruptionTiempoParadas: stopTime.Corrupt,

		TimestampDevice: domain.Timestamp(nowT),
	}

	base := prefix + strconv.Itoa(line) + "/" + p.kind.Slug()
	return []domain.Publication{
		domain.MakePublication(base+"/alarms", qual),
		domain.MakePublication(base+"/production", prod),
	}
}
