package processor

import (
	"strconv"
	"time"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
	"github.com/ernestoguevaraa/celima-iot/internal/state"
)

// entradaHornoProcessor normalizes the kiln-entry PLC. Every channel on this
// PLC is noisy, so each slot carries a plausibility bound sized to the sample
// interval. The time fields share the 15-bit flag quirk.
type entradaHornoProcessor struct {
	store *state.Store
	now   func() time.Time
}

var entradaHornoSlots = []slotSpec{
	{field: "cantidad", width: domain.W15, masked: true, maxDelta: 200},
	{field: "paradas", width: domain.W15, masked: true, maxDelta: 50},
	{field: "fallaHorno", width: domain.W15, masked: true, maxDelta: 20},
	{field: "tiempoProduccion_ds", alias: "tiempoProd_ds", width: domain.W15, masked: true, maxDelta: 250, scale: 0.1},
	{field: "tiempoParadas_s", width: domain.W15, masked: true, maxDelta: 30},
	{field: "tiempoFalla_s", width: domain.W15, masked: true, maxDelta: 30},
}

func newEntradaHornoProcessor(cfg Config) *entradaHornoProcessor {
	return &entradaHornoProcessor{store: cfg.Store, now: cfg.Now}
}

type entradaHornoProduction struct {
	MaquinaID int `json:"maquina_id"`
	Turno     int `json:"turno"`

	CantidadProduccion uint32 `json:"cantidad_produccion"`
	CantidadParadas    uint32 `json:"cantidad_paradas"`
	CantidadFallas     uint32 `json:"cantidad_fallas"`

	TiempoProduccion uint32 `json:"tiempo_produccion"`
	TiempoParadas    uint32 `json:"tiempo_paradas"`
	TiempoFallas     uint32 `json:"tiempo_fallas"`

	CantidadInstantaneo        uint16 `json:"cantidad_instantaneo"`
	CantidadTurno              uint32 `json:"cantidad_turno"`
	Bit15CorruptionCantidad    bool   `json:"bit15_corruption_cantidad"`
	ParadasInstantaneo         uint16 `json:"paradas_instantaneo"`
	ParadasTurno               uint32 `json:"paradas_turno"`
	Bit15CorruptionParadas     bool   `json:"bit15_corruption_paradas"`
	FallaHornoInstantaneo      uint16 `json:"fallaHorno_instantaneo"`
	FallaHornoTurno            uint32 `json:"fallaHorno_turno"`
	Bit15CorruptionFallaHorno  bool   `json:"bit15_corruption_fallaHorno"`
	TiempoProduccionDsInst     uint16 `json:"tiempoProduccion_ds_instantaneo"`
	TiempoProduccionTurnoS     uint32 `json:"tiempoProduccion_turno_s"`
	Bit15CorruptionTiempoProd  bool   `json:"bit15_corruption_tiempoProduccion_ds"`
	TiempoParadasInstantaneo   uint16 `json:"tiempoParadas_instantaneo"`
	TiempoParadasTurnoS        uint32 `json:"tiempoParadas_turno_s"`
	Bit15CorruptionTiempoParad bool   `json:"bit15_corruption_tiempoParadas_s"`
	TiempoFallaInstantaneo     uint16 `json:"tiempoFalla_instantaneo"`
	TiempoFallaTurnoS          uint32 `json:"tiempoFalla_turno_s"`
	Bit15CorruptionTiempoFalla bool   `json:"bit15_corruption_tiempoFalla_s"`

	TimestampDevice string `json:"timestamp_device"`
}

func (p *entradaHornoProcessor) Process(msg map[string]interface{}, prefix string) []domain.Publication {
	nowT := p.now()
	shiftNow := domain.ClassifyShift(nowT)

	line := IntField(msg, "lineID")
	alarms := IntField(msg, "alarms")

	var vals map[string]slotValue
	p.store.WithState(domain.KindEntradaHorno, line, func(ds *state.DeviceState) {
		vals = applySlots(ds, shiftNow, entradaHornoSlots, msg)
	})

	prodQ := vals["cantidad"]
	stopQ := vals["paradas"]
	fallaQ := vals["fallaHorno"]
	prodT := vals["tiempoProduccion_ds"]
	stopT := vals["tiempoParadas_s"]
	fallaT := vals["tiempoFalla_s"]

	qual := alarmPayloadTS{Alarms: alarms, TS: domain.Timestamp(nowT)}

	prod := entradaHornoProduction{
		MaquinaID: domain.KindEntradaHorno.MachineID(),
		Turno:     int(shiftNow),

		CantidadProduccion: turno(prodQ),
		CantidadParadas:    turno(stopQ),
		CantidadFallas:     turno(fallaQ),

		TiempoProduccion: turno(prodT),
		TiempoParadas:    turno(stopT),
		TiempoFallas:     turno(fallaT),

		CantidadInstantaneo:        prodQ.Inst,
		CantidadTurno:              turno(prodQ),
		Bit15CorruptionCantidad:    prodQ.Corrupt,
		ParadasInstantaneo:         stopQ.Inst,
		ParadasTurno:               turno(stopQ),
		Bit15CorruptionParadas:     stopQ.Corrupt,
		FallaHornoInstantaneo:      fallaQ.Inst,
		FallaHornoTurno:            turno(fallaQ),
		Bit15CorruptionFallaHorno:  fallaQ.Corrupt,
		TiempoProduccionDsInst:     prodT.Inst,
		TiempoProduccionTurnoS:     turno(prodT),
		Bit15CorruptionTiempoProd:  prodT.Corrupt,
		TiempoParadasInstantaneo:   stopT.Inst,
		TiempoParadasTurnoS:        turno(stopT),
		Bit15CorruptionTiempoParad: stopT.Corrupt,
		TiempoFallaInstantaneo:     fallaT.Inst,
		TiempoFallaTurnoS:          turno(fallaT),
		Bit15CorruptionTiempoFalla: fallaT.Corrupt,

		TimestampDevice: domain.Timestamp(nowT),
	}

	base := prefix + strconv.Itoa(line) + "/" + domain.KindEntradaHorno.Slug()
	return []domain.Publication{
		domain.MakePublication(base+"/alarms", qual),
		domain.MakePublication(base+"/production", prod),
	}
}

// salidaHornoProcessor normalizes the kiln-exit PLC: thirteen disjoint
// 15-bit flow counters plus a 16-bit 1 Hz heartbeat that doubles as the
// operation-time accumulator.
type salidaHornoProcessor struct {
	store *state.Store
	now   func() time.Time
}

var salidaHornoSlots = []slotSpec{
	{field: "bancalinos0", width: domain.W15, masked: true},
	{field: "bancalinos1", width: domain.W15, masked: true},
	{field: "bancalinosComb1", width: domain.W15, masked: true},
	{field: "bancalinosComb2", width: domain.W15, masked: true},
	{field: "bancalinosTotal", width: domain.W15, masked: true},
	{field: "cambioBarrera", width: domain.W15, masked: true},
	{field: "cambioBarreraTotal", width: domain.W15, masked: true},
	{field: "cambioSentido", width: domain.W15, masked: true},
	{field: "cambioSentidoTotal", width: domain.W15, masked: true},
	{field: "cantidad", width: domain.W15, masked: true},
	{field: "cantidad_total", width: domain.W15, masked: true},
	{field: "paradas_1", width: domain.W15, masked: true},
	{field: "paradas_2", width: domain.W15, masked: true},
	{field: "timer1Hz", width: domain.W16},
}

func newSalidaHornoProcessor(cfg Config) *salidaHornoProcessor {
	return &salidaHornoProcessor{store: cfg.Store, now: cfg.Now}
}

type salidaHornoProduction struct {
	MaquinaID  int `json:"maquina_id"`
	Turno      int `json:"turno"`
	DeviceType int `json:"deviceType"`
	LineID     int `json:"lineID"`
	Checksum   int `json:"checksum"`

	Bancalinos0Instantaneo     uint16 `json:"bancalinos0_instantaneo"`
	Bancalinos0Turno           uint32 `json:"bancalinos0_turno"`
	Bit15CorruptionBancalinos0 bool   `json:"bit15_corruption_bancalinos0"`

	Bancalinos1Instantaneo     uint16 `json:"bancalinos1_instantaneo"`
	Bancalinos1Turno           uint32 `json:"bancalinos1_turno"`
	Bit15CorruptionBancalinos1 bool   `json:"bit15_corruption_bancalinos1"`

	BancalinosComb1Instantaneo     uint16 `json:"bancalinosComb1_instantaneo"`
	BancalinosComb1Turno           uint32 `json:"bancalinosComb1_turno"`
	Bit15CorruptionBancalinosComb1 bool   `json:"bit15_corruption_bancalinosComb1"`

	BancalinosComb2Instantaneo     uint16 `json:"bancalinosComb2_instantaneo"`
	BancalinosComb2Turno           uint32 `json:"bancalinosComb2_turno"`
	Bit15CorruptionBancalinosComb2 bool   `json:"bit15_corruption_bancalinosComb2"`

	BancalinosTotalRaw             int    `json:"bancalinosTotal_raw"`
	BancalinosTotalInstantaneo     uint16 `json:"bancalinosTotal_instantaneo"`
	BancalinosTotalTurno           uint32 `json:"bancalinosTotal_turno"`
	Bit15CorruptionBancalinosTotal bool   `json:"bit15_corruption_bancalinosTotal"`

	CambioBarreraInstantaneo     uint16 `json:"cambioBarrera_instantaneo"`
	CambioBarreraTurno           uint32 `json:"cambioBarrera_turno"`
	Bit15CorruptionCambioBarrera bool   `json:"bit15_corruption_cambioBarrera"`

	CambioBarreraTotalRaw             int    `json:"cambioBarreraTotal_raw"`
	CambioBarreraTotalInstantaneo     uint16 `json:"cambioBarreraTotal_instantaneo"`
	CambioBarreraTotalTurno           uint32 `json:"cambioBarreraTotal_turno"`
	Bit15CorruptionCambioBarreraTotal bool   `json:"bit15_corruption_cambioBarreraTotal"`

	CambioSentidoInstantaneo     uint16 `json:"cambioSentido_instantaneo"`
	CambioSentidoTurno           uint32 `json:"cambioSentido_turno"`
	Bit15CorruptionCambioSentido bool   `json:"bit15_corruption_cambioSentido"`

	CambioSentidoTotalRaw             int    `json:"cambioSentidoTotal_raw"`
	CambioSentidoTotalInstantaneo     uint16 `json:"cambioSentidoTotal_instantaneo"`
	CambioSentidoTotalTurno           uint32 `json:"cambioSentidoTotal_turno"`
	Bit15CorruptionCambioSentidoTotal bool   `json:"bit15_corruption_cambioSentidoTotal"`

	CantidadInstantanea     uint16 `json:"cantidad_instantanea"`
	CantidadRaw             int    `json:"cantidad_raw"`
	CantidadProduccionTurno uint32 `json:"cantidad_produccion_turno"`
	Bit15CorruptionCantidad bool   `json:"bit15_corruption_cantidad"`

	CantidadTotalRaw             int    `json:"cantidad_total_raw"`
	CantidadTotalInstantaneo     uint16 `json:"cantidad_total_instantaneo"`
	CantidadTotalTurno           uint32 `json:"cantidad_total_turno"`
	Bit15CorruptionCantidadTotal bool   `json:"bit15_corruption_cantidad_total"`

	Paradas1Instantaneo     uint16 `json:"paradas_1_instantaneo"`
	Paradas1Turno           uint32 `json:"paradas_1_turno"`
	Bit15CorruptionParadas1 bool   `json:"bit15_corruption_paradas_1"`

	Paradas2Instantaneo     uint16 `json:"paradas_2_instantaneo"`
	Paradas2Turno           uint32 `json:"paradas_2_turno"`
	Bit15CorruptionParadas2 bool   `json:"bit15_corruption_paradas_2"`

	Timer1HzInstantaneo   uint16 `json:"timer1Hz_instantaneo"`
	Timer1HzTurno         uint32 `json:"timer1Hz_turno"`
	TiempoOperacionTurnoS uint32 `json:"tiempo_operacion_turno_s"`

	TimestampDevice string `json:"timestamp_device"`
}

func (p *salidaHornoProcessor) Process(msg map[string]interface{}, prefix string) []domain.Publication {
	nowT := p.now()
	shiftNow := domain.ClassifyShift(nowT)

	line := IntField(msg, "lineID")
	alarms := IntField(msg, "alarms")
	checksum := IntField(msg, "checksum")
	deviceType := IntField(msg, "deviceType")

	var vals map[string]slotValue
	p.store.WithState(domain.KindSalidaHorno, line, func(ds *state.DeviceState) {
		vals = applySlots(ds, shiftNow, salidaHornoSlots, msg)
	})

	timer := vals["timer1Hz"]

	prod := salidaHornoProduction{
		MaquinaID:  domain.KindSalidaHorno.MachineID(),
		Turno:      int(shiftNow),
		DeviceType: deviceType,
		LineID:     line,
		Checksum:   checksum,

		Bancalinos0Instantaneo:     vals["bancalinos0"].Inst,
		Bancalinos0Turno:           turno(vals["bancalinos0"]),
		Bit15CorruptionBancalinos0: vals["bancalinos0"].Corrupt,

		Bancalinos1Instantaneo:     vals["bancalinos1"].Inst,
		Bancalinos1Turno:           turno(vals["bancalinos1"]),
		Bit15CorruptionBancalinos1: vals["bancalinos1"].Corrupt,

		BancalinosComb1Instantaneo:     vals["bancalinosComb1"].Inst,
		BancalinosComb1Turno:           turno(vals["bancalinosComb1"]),
		Bit15CorruptionBancalinosComb1: vals["bancalinosComb1"].Corrupt,

		BancalinosComb2Instantaneo:     vals["bancalinosComb2"].Inst,
		BancalinosComb2Turno:           turno(vals["bancalinosComb2"]),
		Bit15CorruptionBancalinosComb2: vals["bancalinosComb2"].Corrupt,

		BancalinosTotalRaw:             vals["bancalinosTotal"].Raw,
		BancalinosTotalInstantaneo:     vals["bancalinosTotal"].Inst,
		BancalinosTotalTurno:           turno(vals["bancalinosTotal"]),
		Bit15CorruptionBancalinosTotal: vals["bancalinosTotal"].Corrupt,

		CambioBarreraInstantaneo:     vals["cambioBarrera"].Inst,
		CambioBarreraTurno:           turno(vals["cambioBarrera"]),
		Bit15CorruptionCambioBarrera: vals["cambioBarrera"].Corrupt,

		CambioBarreraTotalRaw:             vals["cambioBarreraTotal"].Raw,
		CambioBarreraTotalInstantaneo:     vals["cambioBarreraTotal"].Inst,
		CambioBarreraTotalTurno:           turno(vals["cambioBarreraTotal"]),
		Bit15CorruptionCambioBarreraTotal: vals["cambioBarreraTotal"].Corrupt,

		CambioSentidoInstantaneo:     vals["cambioSentido"].Inst,
		CambioSentidoTurno:           turno(vals["cambioSentido"]),
		Bit15CorruptionCambioSentido: vals["cambioSentido"].Corrupt,

		CambioSentidoTotalRaw:             vals["cambioSentidoTotal"].Raw,
		CambioSentidoTotalInstantaneo:     vals["cambioSentidoTotal"].Inst,
		CambioSentidoTotalTurno:           turno(vals["cambioSentidoTotal"]),
		Bit15CorruptionCambioSentidoTotal: vals["cambioSentidoTotal"].Corrupt,

		CantidadInstantanea:     vals["cantidad"].Inst,
		CantidadRaw:             vals["cantidad"].Raw,
		CantidadProduccionTurno: turno(vals["cantidad"]),
		Bit15CorruptionCantidad: vals["cantidad"].Corrupt,

		CantidadTotalRaw:             vals["cantidad_total"].Raw,
		CantidadTotalInstantaneo:     vals["cantidad_total"].Inst,
		CantidadTotalTurno:           turno(vals["cantidad_total"]),
		Bit15CorruptionCantidadTotal: vals["cantidad_total"].Corrupt,

		Paradas1Instantaneo:     vals["paradas_1"].Inst,
		Paradas1Turno:           turno(vals["paradas_1"]),
		Bit15CorruptionParadas1: vals["paradas_1"].Corrupt,

		Paradas2Instantaneo:     vals["paradas_2"].Inst,
		Paradas2Turno:           turno(vals["paradas_2"]),
		Bit15CorruptionParadas2: vals["paradas_2"].Corrupt,

		Timer1HzInstantaneo: timer.Inst,
		Timer1HzTurno:       turno(timer),
		// timer1Hz counts seconds, so its shift total is the operation time
		TiempoOperacionTurnoS: turno(timer),

		TimestampDevice: domain.Timestamp(nowT),
	}

	qual := alarmPayload{Alarms: alarms, TimestampDevice: domain.Timestamp(nowT)}

	base := prefix + strconv.Itoa(line) + "/" + domain.KindSalidaHorno.Slug()
	return []domain.Publication{
		domain.MakePublication(base+"/alarms", qual),
		domain.MakePublication(base+"/production", prod),
	}
}
