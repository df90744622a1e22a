package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
	"github.com/ernestoguevaraa/celima-iot/internal/processor"
	"github.com/ernestoguevaraa/celima-iot/internal/service"
	"github.com/ernestoguevaraa/celima-iot/internal/state"
)

// mockPublisher records publications and can fail selected attempts.
type mockPublisher struct {
	mu        sync.Mutex
	published []domain.Publication
	attempts  int
	// failOn makes the n-th attempt (1-based) return an error
	failOn map[int]error
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{failOn: make(map[int]error)}
}

func (m *mockPublisher) Publish(_ context.Context, pub domain.Publication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if err, ok := m.failOn[m.attempts]; ok {
		return err
	}
	m.published = append(m.published, pub)
	return nil
}

func (m *mockPublisher) Published() []domain.Publication {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Publication, len(m.published))
	copy(out, m.published)
	return out
}

func (m *mockPublisher) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func newTestHandler(pub service.Publisher) *service.Handler {
	reg := processor.NewRegistry(processor.Config{
		Store:   state.NewStore(),
		Factors: domain.DefaultPressFactors(),
		Now:     func() time.Time { return time.Date(2024, 12, 21, 10, 0, 0, 0, time.Local) },
	})
	return service.NewHandler(nil, reg, pub, service.DefaultHandlerConfig(), zerolog.Nop(), nil)
}

func TestHandler_MalformedPayloadDropped(t *testing.T) {
	pub := newMockPublisher()
	h := newTestHandler(pub)

	h.HandleData([]byte(`{not json`))

	if got := pub.Attempts(); got != 0 {
		t.Errorf("publish attempts = %d, want 0 for malformed payload", got)
	}
	received, dropped, published, _ := h.Stats()
	if received != 1 || dropped != 1 || published != 0 {
		t.Errorf("stats = (%d, %d, %d), want (1, 1, 0)", received, dropped, published)
	}
}

func TestHandler_ValidMessagePublishesAllRecords(t *testing.T) {
	pub := newMockPublisher()
	h := newTestHandler(pub)

	h.HandleData([]byte(`{"deviceType":1,"lineID":1,"cantidadProductos":10}`))

	got := pub.Published()
	if len(got) != 2 {
		t.Fatalf("published = %d records, want 2", len(got))
	}
	if got[0].Topic != "celima/punta_hermosa/planta/linea1/prensa_hidraulica1/alarms" {
		t.Errorf("first topic = %q", got[0].Topic)
	}
	if got[1].Topic != "celima/punta_hermosa/planta/linea1/prensa_hidraulica1/production" {
		t.Errorf("second topic = %q", got[1].Topic)
	}
}

func TestHandler_PublishFailureDoesNotStopRemaining(t *testing.T) {
	pub := newMockPublisher()
	pub.failOn[1] = errors.New("broker unavailable")
	h := newTestHandler(pub)

	h.HandleData([]byte(`{"deviceType":1,"lineID":1,"cantidadProductos":10}`))

	if got := pub.Attempts(); got != 2 {
		t.Errorf("publish attempts = %d, want 2 (second attempted after failure)", got)
	}
	published := pub.Published()
	if len(published) != 1 {
		t.Fatalf("published = %d, want 1", len(published))
	}
	if published[0].Topic != "celima/punta_hermosa/planta/linea1/prensa_hidraulica1/production" {
		t.Errorf("surviving topic = %q", published[0].Topic)
	}
	_, _, ok, fail := h.Stats()
	if ok != 1 || fail != 1 {
		t.Errorf("published/failed = %d/%d, want 1/1", ok, fail)
	}
}

func TestHandler_UnknownDeviceTypeUsesDefault(t *testing.T) {
	pub := newMockPublisher()
	h := newTestHandler(pub)

	h.HandleData([]byte(`{"deviceType":42,"cantidad":7}`))

	got := pub.Published()
	if len(got) != 2 {
		t.Fatalf("published = %d records, want 2", len(got))
	}
	if got[0].Topic != "celima/punta_hermosa/planta/linea/production/line/quantity" {
		t.Errorf("topic = %q", got[0].Topic)
	}
	if got[1].Topic != "celima/punta_hermosa/planta/linea/quality/alarms" {
		t.Errorf("topic = %q", got[1].Topic)
	}
}

func TestHandler_MissingDeviceTypeUsesDefault(t *testing.T) {
	pub := newMockPublisher()
	h := newTestHandler(pub)

	h.HandleData([]byte(`{"cantidad":3}`))

	if got := len(pub.Published()); got != 2 {
		t.Fatalf("published = %d records, want 2", got)
	}
}

func TestHandler_SubscribedTopics(t *testing.T) {
	h := newTestHandler(newMockPublisher())
	topics := h.SubscribedTopics()
	want := []string{"celima/data", "celima/error", "celima/join", "celima/ACK"}
	if len(topics) != len(want) {
		t.Fatalf("topics = %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("topics[%d] = %q, want %q", i, topics[i], want[i])
		}
	}
}
