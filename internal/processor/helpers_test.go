package processor_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
	"github.com/ernestoguevaraa/celima-iot/internal/processor"
	"github.com/ernestoguevaraa/celima-iot/internal/state"
)

const testPrefix = "celima/punta_hermosa/planta/linea"

// clock is an injectable wall clock; tests move t to cross shift boundaries.
type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	return c.t
}

func s1Clock() *clock {
	return &clock{t: time.Date(2024, 12, 21, 10, 0, 0, 0, time.Local)}
}

func (c *clock) toShift2() {
	c.t = time.Date(2024, 12, 21, 16, 0, 0, 0, time.Local)
}

func newRegistry(c *clock) *processor.Registry {
	return processor.NewRegistry(processor.Config{
		Store:   state.NewStore(),
		Factors: domain.DefaultPressFactors(),
		Now:     c.now,
	})
}

func msg(deviceType, line int, fields map[string]interface{}) map[string]interface{} {
	m := map[string]interface{}{
		"deviceType": deviceType,
		"lineID":     line,
	}
	for k, v := range fields {
		m[k] = v
	}
	return m
}

func decode(t *testing.T, pub domain.Publication) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(pub.Payload, &m); err != nil {
		t.Fatalf("payload on %s is not valid JSON: %v", pub.Topic, err)
	}
	return m
}

func num(t *testing.T, m map[string]interface{}, key string) float64 {
	t.Helper()
	v, ok := m[key]
	if !ok {
		t.Fatalf("payload missing field %q", key)
	}
	f, ok := v.(float64)
	if !ok {
		t.Fatalf("field %q is %T, want number", key, v)
	}
	return f
}

func boolean(t *testing.T, m map[string]interface{}, key string) bool {
	t.Helper()
	v, ok := m[key]
	if !ok {
		t.Fatalf("payload missing field %q", key)
	}
	b, ok := v.(bool)
	if !ok {
		t.Fatalf("field %q is %T, want bool", key, v)
	}
	return b
}

// production returns the decoded production payload of a processor result,
// asserting the expected topic.
func production(t *testing.T, pubs []domain.Publication, wantTopic string) map[string]interface{} {
	t.Helper()
	if len(pubs) == 0 {
		t.Fatal("no publications returned")
	}
	last := pubs[len(pubs)-1]
	if last.Topic != wantTopic {
		t.Fatalf("production topic = %q, want %q", last.Topic, wantTopic)
	}
	return decode(t, last)
}
