// Package processor implements the per-machine message processors that turn
// raw PLC counter snapshots into normalized per-shift production metrics.
package processor

import (
	"time"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
	"github.com/ernestoguevaraa/celima-iot/internal/state"
)

// Processor converts one parsed data-topic document into zero or more
// outbound publications. prefix is the ISA-95 topic prefix, concatenated
// verbatim with the line id and machine suffix.
type Processor interface {
	Process(msg map[string]interface{}, prefix string) []domain.Publication
}

// Config carries the dependencies shared by all processors.
type Config struct {
	Store   *state.Store
	Factors domain.PressFactors
	// Now supplies the wall clock for shift classification and timestamps.
	// Defaults to time.Now; tests inject fixed instants to drive shift
	// boundaries.
	Now func() time.Time
}

// Registry resolves the processor for a deviceType code, falling back to the
// stateless Default processor for unknown codes.
type Registry struct {
	procs map[domain.DeviceKind]Processor
	def   Processor
	store *state.Store
}

// NewRegistry builds one processor instance per device kind over a shared
// state store.
func NewRegistry(cfg Config) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Store == nil {
		cfg.Store = state.NewStore()
	}

	r := &Registry{
		procs: make(map[domain.DeviceKind]Processor, len(domain.AllKinds)),
		def:   newDefaultProcessor(cfg.Now),
		store: cfg.Store,
	}

	r.procs[domain.KindPrensaHidraulica1] = newPressProcessor(domain.KindPrensaHidraulica1, cfg)
	r.procs[domain.KindPrensaHidraulica2] = newPressProcessor(domain.KindPrensaHidraulica2, cfg)
	r.procs[domain.KindEntradaSecador] = newEntradaSecadorProcessor(cfg)
	r.procs[domain.KindSalidaSecador] = newSalidaSecadorProcessor(cfg)
	r.procs[domain.KindEsmalte] = newEsmalteProcessor(cfg)
	r.procs[domain.KindEntradaHorno] = newEntradaHornoProcessor(cfg)
	r.procs[domain.KindSalidaHorno] = newSalidaHornoProcessor(cfg)
	r.procs[domain.KindCalidad] = newCalidadProcessor(cfg)

	return r
}

// Dispatch returns the processor for a deviceType code.
func (r *Registry) Dispatch(deviceType int) Processor {
	if kind, ok := domain.KindFromInt(deviceType); ok {
		return r.procs[kind]
	}
	return r.def
}

// ResetAll clears every accumulator across all kinds and lines.
func (r *Registry) ResetAll() {
	r.store.ResetAll()
}

// alarmPayload is the alarms record most machines publish alongside
// production.
type alarmPayload struct {
	Alarms          int    `json:"alarms"`
	TimestampDevice string `json:"timestamp_device"`
}

// alarmPayloadTS is the variant the dryer-entry and kiln-entry PLC programs
// established, with the short `ts` key.
type alarmPayloadTS struct {
	Alarms int    `json:"alarms"`
	TS     string `json:"ts"`
}
