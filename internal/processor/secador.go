package processor

import (
	"strconv"
	"time"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
	"github.com/ernestoguevaraa/celima-iot/internal/state"
)

// entradaSecadorProcessor normalizes the dryer-entry PLC. Its two channels
// are noisy, so both carry plausibility bounds: at most 100 starts and 30
// operating seconds per sample interval.
type entradaSecadorProcessor struct {
	store *state.Store
	now   func() time.Time
}

var entradaSecadorSlots = []slotSpec{
	{field: "arranques", width: domain.W16, masked: true, maxDelta: 100},
	{field: "tiempoOperacion_s", width: domain.W16, masked: true, maxDelta: 30},
}

func newEntradaSecadorProcessor(cfg Config) *entradaSecadorProcessor {
	return &entradaSecadorProcessor{store: cfg.Store, now: cfg.Now}
}

type entradaSecadorProduction struct {
	MaquinaID int `json:"maquina_id"`
	Turno     int `json:"turno"`

	CantidadArranques uint32 `json:"cantidad_arranques"`
	TiempoOperacion   uint32 `json:"tiempo_operacion"`

	ArranquesInstantaneo           uint16 `json:"arranques_instantaneo"`
	ArranquesTurno                 uint32 `json:"arranques_turno"`
	Bit15CorruptionArranques       bool   `json:"bit15_corruption_arranques"`
	TiempoOperacionInstantaneo     uint16 `json:"tiempoOperacion_s_instantaneo"`
	TiempoOperacionTurnoS          uint32 `json:"tiempoOperacion_turno_s"`
	Bit15CorruptionTiempoOperacion bool   `json:"bit15_corruption_tiempoOperacion_s"`

	TimestampDevice string `json:"timestamp_device"`
}

func (p *entradaSecadorProcessor) Process(msg map[string]interface{}, prefix string) []domain.Publication {
	nowT := p.now()
	shiftNow := domain.ClassifyShift(nowT)

	line := IntField(msg, "lineID")
	alarms := IntField(msg, "alarms")

	var vals map[string]slotValue
	p.store.WithState(domain.KindEntradaSecador, line, func(ds *state.DeviceState) {
		vals = applySlots(ds, shiftNow, entradaSecadorSlots, msg)
	})

	arranques := vals["arranques"]
	oper := vals["tiempoOperacion_s"]

	qual := alarmPayloadTS{Alarms: alarms, TS: domain.Timestamp(nowT)}

	prod := entradaSecadorProduction{
		MaquinaID: domain.KindEntradaSecador.MachineID(),
		Turno:     int(shiftNow),

		CantidadArranques: turno(arranques),
		TiempoOperacion:   turno(oper),

		ArranquesInstantaneo:           arranques.Inst,
		ArranquesTurno:                 turno(arranques),
		Bit15CorruptionArranques:       arranques.Corrupt,
		TiempoOperacionInstantaneo:     oper.Inst,
		TiempoOperacionTurnoS:          turno(oper),
		Bit15CorruptionTiempoOperacion: oper.Corrupt,

		TimestampDevice: domain.Timestamp(nowT),
	}

	base := prefix + strconv.Itoa(line) + "/" + domain.KindEntradaSecador.Slug()
	return []domain.Publication{
		domain.MakePublication(base+"/alarms", qual),
		domain.MakePublication(base+"/production", prod),
	}
}

// salidaSecadorProcessor normalizes the dryer-exit PLC: the standard
// product/stop counter set with no plausibility bounds.
type salidaSecadorProcessor struct {
	store *state.Store
	now   func() time.Time
}

var salidaSecadorSlots = []slotSpec{
	{field: "cantidadProductos", width: domain.W15, masked: true},
	{field: "tiempoProduccion_ds", width: domain.W16, scale: 0.1},
	{field: "paradas", width: domain.W15, masked: true},
	{field: "tiempoParadas_s", width: domain.W15, masked: true},
}

func newSalidaSecadorProcessor(cfg Config) *salidaSecadorProcessor {
	return &salidaSecadorProcessor{store: cfg.Store, now: cfg.Now}
}

// lineCounterProduction is the production payload shared by the dryer exit
// and the glaze line: identical counter sets, different machine ids.
type lineCounterProduction struct {
	MaquinaID int `json:"maquina_id"`
	Turno     int `json:"turno"`

	CantidadProduccion uint32 `json:"cantidad_produccion"`
	TiempoProduccion   uint32 `json:"tiempo_produccion"`
	CantidadParadas    uint32 `json:"cantidad_paradas"`
	TiempoParadas      uint32 `json:"tiempo_paradas"`

	CantidadProductosInstantaneo     uint16 `json:"cantidadProductos_instantaneo"`
	CantidadProductosTurno           uint32 `json:"cantidadProductos_turno"`
	Bit15CorruptionCantidadProductos bool   `json:"bit15_corruption_cantidadProductos"`

	TiempoProduccionDsInstantaneo uint16 `json:"tiempoProduccion_ds_instantaneo"`
	TiempoProduccionTurnoS        uint32 `json:"tiempoProduccion_turno_s"`

	ParadasInstantaneo     uint16 `json:"paradas_instantaneo"`
	ParadasTurno           uint32 `json:"paradas_turno"`
	Bit15CorruptionParadas bool   `json:"bit15_corruption_paradas"`

	TiempoParadasInstantaneo     uint16 `json:"tiempoParadas_instantaneo"`
	TiempoParadasTurnoS          uint32 `json:"tiempoParadas_turno_s"`
	Bit15CorruptionTiempoParadas bool   `json:"bit15_corruption_tiempoParadas"`

	TimestampDevice string `json:"timestamp_device"`
}

func buildLineCounterProduction(machineID int, shiftNow domain.Shift, vals map[string]slotValue, nowT time.Time) lineCounterProduction {
	prodQ := vals["cantidadProductos"]
	prodT := vals["tiempoProduccion_ds"]
	stopQ := vals["paradas"]
	stopT := vals["tiempoParadas_s"]

	return lineCounterProduction{
		MaquinaID: machineID,
		Turno:     int(shiftNow),

		CantidadProduccion: turno(prodQ),
		TiempoProduccion:   turno(prodT),
		CantidadParadas:    turno(stopQ),
		TiempoParadas:      turno(stopT),

		CantidadProductosInstantaneo:     prodQ.Inst,
		CantidadProductosTurno:           turno(prodQ),
		Bit15CorruptionCantidadProductos: prodQ.Corrupt,

		TiempoProduccionDsInstantaneo: prodT.Inst,
		TiempoProduccionTurnoS:        turno(prodT),

		ParadasInstantaneo:     stopQ.Inst,
		ParadasTurno:           turno(stopQ),
		Bit15CorruptionParadas: stopQ.Corrupt,

		TiempoParadasInstantaneo:     stopT.Inst,
		TiempoParadasTurnoS:          turno(stopT),
		Bit15CorruptionTiempoParadas: stopT.Corrupt,

		TimestampDevice: domain.Timestamp(nowT),
	}
}

func (p *salidaSecadorProcessor) Process(msg map[string]interface{}, prefix string) []domain.Publication {
	nowT := p.now()
	shiftNow := domain.ClassifyShift(nowT)

	line := IntField(msg, "lineID")
	alarms := IntField(msg, "alarms")

	var vals map[string]slotValue
	p.store.WithState(domain.KindSalidaSecador, line, func(ds *state.DeviceState) {
		vals = applySlots(ds, shiftNow, salidaSecadorSlots, msg)
	})

	qual := alarmPayload{Alarms: alarms, TimestampDevice: domain.Timestamp(nowT)}
	prod := buildLineCounterProduction(domain.KindSalidaSecador.MachineID(), shiftNow, vals, nowT)

	base := prefix + strconv.Itoa(line) + "/" + domain.KindSalidaSecador.Slug()
	return []domain.Publication{
		domain.MakePublication(base+"/alarms", qual),
		domain.MakePublication(base+"/production", prod),
	}
}
