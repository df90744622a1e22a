package state_test

import (
	"sync"
	"testing"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
	"github.com/ernestoguevaraa/celima-iot/internal/state"
)

func TestStore_LazyCreation(t *testing.T) {
	s := state.NewStore()

	created := false
	s.WithState(domain.KindEsmalte, 3, func(ds *state.DeviceState) {
		created = !ds.Initialized
		ds.Initialized = true
		ds.Slot("cantidadProductos").Acc = 7
	})
	if !created {
		t.Error("first access should see uninitialized state")
	}

	s.WithState(domain.KindEsmalte, 3, func(ds *state.DeviceState) {
		if !ds.Initialized {
			t.Error("state should persist between accesses")
		}
		if got := ds.Slot("cantidadProductos").Acc; got != 7 {
			t.Errorf("slot Acc = %v, want 7", got)
		}
	})
}

func TestStore_PerLineIndependence(t *testing.T) {
	s := state.NewStore()

	s.WithState(domain.KindPrensaHidraulica1, 1, func(ds *state.DeviceState) {
		ds.Initialized = true
		ds.Slot("cantidadProductos").Acc = 100
	})
	s.WithState(domain.KindPrensaHidraulica1, 2, func(ds *state.DeviceState) {
		if ds.Slot("cantidadProductos").Acc != 0 {
			t.Error("line 2 must not observe line 1 accumulators")
		}
	})
}

func TestStore_PerKindIndependence(t *testing.T) {
	s := state.NewStore()

	s.WithState(domain.KindPrensaHidraulica1, 1, func(ds *state.DeviceState) {
		ds.Slot("paradas").Acc = 5
	})
	s.WithState(domain.KindSalidaSecador, 1, func(ds *state.DeviceState) {
		if ds.Slot("paradas").Acc != 0 {
			t.Error("kinds must not share state for the same line id")
		}
	})
}

func TestStore_ResetAll(t *testing.T) {
	s := state.NewStore()

	for _, kind := range domain.AllKinds {
		s.WithState(kind, 1, func(ds *state.DeviceState) {
			ds.Initialized = true
			ds.Slot("x").Acc = 42
		})
	}

	s.ResetAll()

	for _, kind := range domain.AllKinds {
		s.WithState(kind, 1, func(ds *state.DeviceState) {
			if ds.Initialized {
				t.Errorf("%v state survived ResetAll", kind)
			}
		})
	}
}

func TestStore_LineCounts(t *testing.T) {
	s := state.NewStore()

	s.WithState(domain.KindCalidad, 1, func(*state.DeviceState) {})
	s.WithState(domain.KindCalidad, 2, func(*state.DeviceState) {})
	s.WithState(domain.KindEsmalte, 4, func(*state.DeviceState) {})

	counts := s.LineCounts()
	if counts["calidad"] != 2 {
		t.Errorf("calidad lines = %d, want 2", counts["calidad"])
	}
	if counts["esmalte"] != 1 {
		t.Errorf("esmalte lines = %d, want 1", counts["esmalte"])
	}
	if counts["prensa_hidraulica1"] != 0 {
		t.Errorf("prensa_hidraulica1 lines = %d, want 0", counts["prensa_hidraulica1"])
	}
}

// Concurrent callbacks for different kinds and lines must serialize per kind
// without losing increments.
func TestStore_ConcurrentAccess(t *testing.T) {
	s := state.NewStore()

	const perWorker = 500
	var wg sync.WaitGroup
	for _, kind := range []domain.DeviceKind{domain.KindPrensaHidraulica1, domain.KindEsmalte} {
		for line := 1; line <= 3; line++ {
			wg.Add(1)
			go func(k domain.DeviceKind, l int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					s.WithState(k, l, func(ds *state.DeviceState) {
						ds.Slot("cantidad").Acc++
					})
				}
			}(kind, line)
		}
	}
	wg.Wait()

	for _, kind := range []domain.DeviceKind{domain.KindPrensaHidraulica1, domain.KindEsmalte} {
		for line := 1; line <= 3; line++ {
			s.WithState(kind, line, func(ds *state.DeviceState) {
				if got := ds.Slot("cantidad").Acc; got != perWorker {
					t.Errorf("%v line %d Acc = %v, want %d", kind, line, got, perWorker)
				}
			})
		}
	}
}
