package processor

import (
	"time"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
)

// defaultProcessor handles unknown device types: no state, two generic
// summary publications with the observed document attached.
type defaultProcessor struct {
	now func() time.Time
}

func newDefaultProcessor(now func() time.Time) *defaultProcessor {
	return &defaultProcessor{now: now}
}

func (p *defaultProcessor) Process(msg map[string]interface{}, prefix string) []domain.Publication {
	ts := p.now().Unix()

	quantity := map[string]interface{}{
		"quantity": IntField(msg, "cantidad"),
		"ts":       ts,
		"observed": msg,
	}
	alarms := map[string]interface{}{
		"alarms":   IntField(msg, "alarms"),
		"ts":       ts,
		"observed": msg,
	}

	if dev := StringField(msg, "devEUI"); dev != "" {
		quantity["devEUI"] = dev
	}
	if dn := StringField(msg, "deviceName"); dn != "" {
		quantity["deviceName"] = dn
	}
	if HasField(msg, "deviceType") {
		quantity["deviceType"] = IntField(msg, "deviceType")
	}

	return []domain.Publication{
		domain.MakePublication(prefix+"/production/line/quantity", quantity),
		domain.MakePublication(prefix+"/quality/alarms", alarms),
	}
}
