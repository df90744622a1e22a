// Package service provides the message handler that bridges the raw data
// feed to the device processors.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
	"github.com/ernestoguevaraa/celima-iot/internal/metrics"
	"github.com/ernestoguevaraa/celima-iot/internal/processor"
)

// Publisher is the outbound side the handler needs; satisfied by the MQTT
// publisher and by test mocks.
type Publisher interface {
	Publish(ctx context.Context, pub domain.Publication) error
}

// HandlerConfig holds the inbound topic wiring.
type HandlerConfig struct {
	// DataTopic carries the raw PLC snapshots.
	DataTopic string
	// ErrorTopic, JoinTopic and AckTopic are logged and otherwise ignored.
	ErrorTopic string
	JoinTopic  string
	AckTopic   string
	// Prefix is the ISA-95 topic prefix handed to every processor, verbatim.
	Prefix string
	QoS    byte
	// PublishTimeout bounds each outbound publish attempt.
	PublishTimeout time.Duration
}

// DefaultHandlerConfig returns the deployment's topic defaults.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		DataTopic:      "celima/data",
		ErrorTopic:     "celima/error",
		JoinTopic:      "celima/join",
		AckTopic:       "celima/ACK",
		Prefix:         "celima/punta_hermosa/planta/linea",
		QoS:            1,
		PublishTimeout: 5 * time.Second,
	}
}

// Stats tracks handler counters.
type Stats struct {
	Received      atomic.Uint64
	Dropped       atomic.Uint64
	Published     atomic.Uint64
	PublishErrors atomic.Uint64
}

// Handler subscribes to the raw topics, dispatches each data message to its
// processor and hands the resulting publications to the publisher. No error
// escapes back into the MQTT worker thread.
type Handler struct {
	client    pahomqtt.Client
	registry  *processor.Registry
	publisher Publisher
	logger    zerolog.Logger
	metrics   *metrics.Registry
	config    HandlerConfig
	now       func() time.Time
	stats     *Stats
	running   atomic.Bool
}

// NewHandler creates a message handler. client may be nil in tests that drive
// HandleData directly.
func NewHandler(
	client pahomqtt.Client,
	registry *processor.Registry,
	publisher Publisher,
	config HandlerConfig,
	logger zerolog.Logger,
	metricsReg *metrics.Registry,
) *Handler {
	if config.PublishTimeout == 0 {
		config.PublishTimeout = 5 * time.Second
	}
	return &Handler{
		client:    client,
		registry:  registry,
		publisher: publisher,
		logger:    logger.With().Str("component", "message-handler").Logger(),
		metrics:   metricsReg,
		config:    config,
		now:       time.Now,
		stats:     &Stats{},
	}
}

// SubscribedTopics lists the inbound topics in subscription order.
func (h *Handler) SubscribedTopics() []string {
	return []string{
		h.config.DataTopic,
		h.config.ErrorTopic,
		h.config.JoinTopic,
		h.config.AckTopic,
	}
}

// Start subscribes to the data and auxiliary topics at QoS 1.
func (h *Handler) Start() error {
	if h.running.Load() {
		return nil
	}

	filters := make(map[string]byte, 4)
	for _, t := range h.SubscribedTopics() {
		filters[t] = h.config.QoS
	}

	token := h.client.SubscribeMultiple(filters, h.onMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: %v", domain.ErrMQTTSubscribeFailed, token.Error())
	}

	h.running.Store(true)
	h.logger.Info().Strs("topics", h.SubscribedTopics()).Msg("Subscribed to raw data topics")
	return nil
}

// Stop unsubscribes from all topics.
func (h *Handler) Stop() error {
	if !h.running.Load() {
		return nil
	}

	token := h.client.Unsubscribe(h.SubscribedTopics()...)
	token.Wait()
	h.running.Store(false)
	h.logger.Info().Msg("Message handler stopped")
	return token.Error()
}

// onMessage is the paho callback for every subscribed topic.
func (h *Handler) onMessage(_ pahomqtt.Client, m pahomqtt.Message) {
	switch m.Topic() {
	case h.config.DataTopic:
		h.HandleData(m.Payload())
	case h.config.ErrorTopic:
		h.logger.Error().Str("topic", m.Topic()).Bytes("payload", m.Payload()).Msg("Device error report")
	case h.config.JoinTopic:
		h.logger.Info().Str("topic", m.Topic()).Bytes("payload", m.Payload()).Msg("Device joined")
	case h.config.AckTopic:
		h.logger.Info().Str("topic", m.Topic()).Bytes("payload", m.Payload()).Msg("Device acknowledgement")
	default:
		h.logger.Debug().Str("topic", m.Topic()).Msg("Message on unexpected topic ignored")
	}
}

// HandleData parses one raw payload, dispatches it and publishes the results.
// Malformed payloads are logged and dropped; a failed publish does not stop
// the remaining records.
func (h *Handler) HandleData(payload []byte) {
	h.stats.Received.Add(1)

	var msg map[string]interface{}
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.stats.Dropped.Add(1)
		if h.metrics != nil {
			h.metrics.RecordMalformed()
		}
		h.logger.Error().Err(err).Str("payload", string(payload)).Msg("Invalid JSON on data topic")
		return
	}

	deviceType := processor.IntField(msg, "deviceType")
	kindLabel := "default"
	if kind, ok := domain.KindFromInt(deviceType); ok {
		kindLabel = kind.String()
	}
	if h.metrics != nil {
		h.metrics.RecordMessage(kindLabel)
	}

	// One-shot rollover signal; processors track their own shift snapshots.
	if domain.DetectGlobalShiftChange(domain.ClassifyShift(h.now())) {
		if h.metrics != nil {
			h.metrics.RecordShiftRollover()
		}
		h.logger.Info().Msg("Plant shift rolled over")
	}

	proc := h.registry.Dispatch(deviceType)
	pubs := proc.Process(msg, h.config.Prefix)

	for _, pub := range pubs {
		ctx, cancel := context.WithTimeout(context.Background(), h.config.PublishTimeout)
		err := h.publisher.Publish(ctx, pub)
		cancel()
		if err != nil {
			h.stats.PublishErrors.Add(1)
			h.logger.Error().Err(err).Str("topic", pub.Topic).Msg("Publish failed")
			continue
		}
		h.stats.Published.Add(1)
	}
}

// Stats returns a snapshot of the handler counters.
func (h *Handler) Stats() (received, dropped, published, publishErrors uint64) {
	return h.stats.Received.Load(), h.stats.Dropped.Load(), h.stats.Published.Load(), h.stats.PublishErrors.Load()
}
