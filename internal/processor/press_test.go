package processor_test

import (
	"testing"
)

func TestPress1_AccumulatesAcrossMessages(t *testing.T) {
	c := s1Clock()
	reg := newRegistry(c)
	proc := reg.Dispatch(1)

	proc.Process(msg(1, 1, map[string]interface{}{
		"cantidadProductos":   10,
		"tiempoProduccion_ds": 100,
	}), testPrefix)

	pubs := proc.Process(msg(1, 1, map[string]interface{}{
		"cantidadProductos":   13,
		"tiempoProduccion_ds": 200,
	}), testPrefix)

	if len(pubs) != 2 {
		t.Fatalf("publications = %d, want 2", len(pubs))
	}
	if pubs[0].Topic != testPrefix+"1/prensa_hidraulica1/alarms" {
		t.Errorf("alarms topic = %q", pubs[0].Topic)
	}

	prod := production(t, pubs, testPrefix+"1/prensa_hidraulica1/production")
	if got := num(t, prod, "cantidadPisadas_turno"); got != 3 {
		t.Errorf("cantidadPisadas_turno = %v, want 3", got)
	}
	if got := num(t, prod, "tiempoProduccion_turno_s"); got != 10 {
		t.Errorf("tiempoProduccion_turno_s = %v, want 10", got)
	}
	// line 1 factor is 3 pieces per pisada
	if got := num(t, prod, "cantidadProductos_turno"); got != 9 {
		t.Errorf("cantidadProductos_turno = %v, want 9", got)
	}
	if got := num(t, prod, "turno"); got != 1 {
		t.Errorf("turno = %v, want 1", got)
	}
	if got := num(t, prod, "maquina_id"); got != 1 {
		t.Errorf("maquina_id = %v, want 1", got)
	}
	if got := num(t, prod, "lineID"); got != 1 {
		t.Errorf("lineID = %v, want 1", got)
	}
}

func TestPress2_WrapSurvival(t *testing.T) {
	c := s1Clock()
	reg := newRegistry(c)
	proc := reg.Dispatch(2)

	first := proc.Process(msg(2, 2, map[string]interface{}{
		"cantidadProductos": 32767,
	}), testPrefix)

	prod := production(t, first, testPrefix+"2/prensa_hidraulica2/production")
	if boolean(t, prod, "bit15_corruption_cantidadProductos") {
		t.Error("corruption flag should be false for 32767")
	}
	if got := num(t, prod, "cantidadPisadas_turno"); got != 0 {
		t.Errorf("seed message cantidadPisadas_turno = %v, want 0", got)
	}

	second := proc.Process(msg(2, 2, map[string]interface{}{
		"cantidadProductos": 2,
	}), testPrefix)

	prod = production(t, second, testPrefix+"2/prensa_hidraulica2/production")
	if got := num(t, prod, "cantidadPisadas_turno"); got != 3 {
		t.Errorf("cantidadPisadas_turno after wrap = %v, want 3", got)
	}
	// PH_2 uses the fixed factor of 6 on every line
	if got := num(t, prod, "cantidadProductos_turno"); got != 18 {
		t.Errorf("cantidadProductos_turno = %v, want 18", got)
	}
	if boolean(t, prod, "bit15_corruption_cantidadProductos") {
		t.Error("corruption flag should be false")
	}
}

func TestPress1_FlagBitMasked(t *testing.T) {
	c := s1Clock()
	reg := newRegistry(c)
	proc := reg.Dispatch(1)

	// 0x8040: counter value 0x0040 with the firmware flag set
	pubs := proc.Process(msg(1, 1, map[string]interface{}{
		"cantidadProductos": 0x8040,
	}), testPrefix)

	prod := production(t, pubs, testPrefix+"1/prensa_hidraulica1/production")
	if got := num(t, prod, "cantidadProductos_instantaneo"); got != 0x40 {
		t.Errorf("cantidadProductos_instantaneo = %v, want %d", got, 0x40)
	}
	if got := num(t, prod, "cantidadProductos_raw"); got != 0x8040 {
		t.Errorf("cantidadProductos_raw = %v, want %d", got, 0x8040)
	}
	if !boolean(t, prod, "bit15_corruption_cantidadProductos") {
		t.Error("corruption flag should be true when bit 15 is set")
	}

	// Accumulation is unaffected by the flag: 0x8040 then 0x0043 advances by 3.
	pubs = proc.Process(msg(1, 1, map[string]interface{}{
		"cantidadProductos": 0x0043,
	}), testPrefix)
	prod = production(t, pubs, testPrefix+"1/prensa_hidraulica1/production")
	if got := num(t, prod, "cantidadPisadas_turno"); got != 3 {
		t.Errorf("cantidadPisadas_turno = %v, want 3", got)
	}
	if boolean(t, prod, "bit15_corruption_cantidadProductos") {
		t.Error("corruption flag should clear when bit 15 clears")
	}
}

func TestPress1_MonotonicWithinShift(t *testing.T) {
	c := s1Clock()
	reg := newRegistry(c)
	proc := reg.Dispatch(1)

	samples := []int{100, 150, 150, 32760, 5, 80}
	var prev float64 = -1
	for _, v := range samples {
		pubs := proc.Process(msg(1, 4, map[string]interface{}{
			"cantidadProductos": v,
		}), testPrefix)
		prod := production(t, pubs, testPrefix+"4/prensa_hidraulica1/production")
		got := num(t, prod, "cantidadPisadas_turno")
		if got < prev {
			t.Fatalf("cantidadPisadas_turno decreased within shift: %v -> %v", prev, got)
		}
		prev = got
	}
}

func TestPress1_PerLineIndependence(t *testing.T) {
	c := s1Clock()
	reg := newRegistry(c)
	proc := reg.Dispatch(1)

	proc.Process(msg(1, 1, map[string]interface{}{"cantidadProductos": 0}), testPrefix)
	proc.Process(msg(1, 2, map[string]interface{}{"cantidadProductos": 0}), testPrefix)

	proc.Process(msg(1, 1, map[string]interface{}{"cantidadProductos": 40}), testPrefix)

	pubs := proc.Process(msg(1, 2, map[string]interface{}{"cantidadProductos": 5}), testPrefix)
	prod := production(t, pubs, testPrefix+"2/prensa_hidraulica1/production")
	if got := num(t, prod, "cantidadPisadas_turno"); got != 5 {
		t.Errorf("line 2 cantidadPisadas_turno = %v, want 5 (line 1 advanced by 40)", got)
	}
}

func TestPress1_ShiftBoundaryReset(t *testing.T) {
	c := s1Clock()
	reg := newRegistry(c)
	proc := reg.Dispatch(1)

	proc.Process(msg(1, 1, map[string]interface{}{"cantidadProductos": 0}), testPrefix)
	pubs := proc.Process(msg(1, 1, map[string]interface{}{"cantidadProductos": 50}), testPrefix)
	prod := production(t, pubs, testPrefix+"1/prensa_hidraulica1/production")
	if got := num(t, prod, "cantidadPisadas_turno"); got != 50 {
		t.Fatalf("cantidadPisadas_turno = %v, want 50", got)
	}

	// Cross the S1 -> S2 boundary: next message seeds only.
	c.toShift2()
	pubs = proc.Process(msg(1, 1, map[string]interface{}{"cantidadProductos": 70}), testPrefix)
	prod = production(t, pubs, testPrefix+"1/prensa_hidraulica1/production")
	if got := num(t, prod, "cantidadPisadas_turno"); got != 0 {
		t.Errorf("cantidadPisadas_turno after shift change = %v, want 0", got)
	}
	if got := num(t, prod, "turno"); got != 2 {
		t.Errorf("turno = %v, want 2", got)
	}

	// Accumulation resumes from the reseeded baseline.
	pubs = proc.Process(msg(1, 1, map[string]interface{}{"cantidadProductos": 75}), testPrefix)
	prod = production(t, pubs, testPrefix+"1/prensa_hidraulica1/production")
	if got := num(t, prod, "cantidadPisadas_turno"); got != 5 {
		t.Errorf("cantidadPisadas_turno = %v, want 5", got)
	}
}

func TestPress1_PisadasPerMinuteRate(t *testing.T) {
	c := s1Clock()
	reg := newRegistry(c)
	proc := reg.Dispatch(1)

	proc.Process(msg(1, 1, map[string]interface{}{
		"cantidadProductos":   0,
		"tiempoProduccion_ds": 0,
	}), testPrefix)

	// 60 pisadas over 60 s of production time: 60 per minute
	pubs := proc.Process(msg(1, 1, map[string]interface{}{
		"cantidadProductos":   60,
		"tiempoProduccion_ds": 600,
	}), testPrefix)
	prod := production(t, pubs, testPrefix+"1/prensa_hidraulica1/production")
	if got := num(t, prod, "cantidadPisadas_min"); got != 60 {
		t.Errorf("cantidadPisadas_min = %v, want 60", got)
	}
}

func TestPress1_RateZeroWithoutProductionTime(t *testing.T) {
	c := s1Clock()
	reg := newRegistry(c)
	proc := reg.Dispatch(1)

	pubs := proc.Process(msg(1, 1, map[string]interface{}{
		"cantidadProductos": 500,
	}), testPrefix)
	prod := production(t, pubs, testPrefix+"1/prensa_hidraulica1/production")
	if got := num(t, prod, "cantidadPisadas_min"); got != 0 {
		t.Errorf("cantidadPisadas_min = %v, want 0 below one second of production", got)
	}
}

func TestPress1_StopCounters(t *testing.T) {
	c := s1Clock()
	reg := newRegistry(c)
	proc := reg.Dispatch(1)

	proc.Process(msg(1, 3, map[string]interface{}{
		"paradas":         10,
		"tiempoParadas_s": 100,
	}), testPrefix)
	pubs := proc.Process(msg(1, 3, map[string]interface{}{
		"paradas":         12,
		"tiempoParadas_s": 134,
	}), testPrefix)

	prod := production(t, pubs, testPrefix+"3/prensa_hidraulica1/production")
	if got := num(t, prod, "paradas_turno"); got != 2 {
		t.Errorf("paradas_turno = %v, want 2", got)
	}
	if got := num(t, prod, "tiempoParadas_turno_s"); got != 34 {
		t.Errorf("tiempoParadas_turno_s = %v, want 34", got)
	}
}
