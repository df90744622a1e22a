// Package mqtt provides the QoS1 publisher used for normalized metrics, with
// automatic reconnection, message buffering and a circuit breaker on the
// publish path.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
	"github.com/ernestoguevaraa/celima-iot/internal/metrics"
)

// Config holds MQTT publisher configuration.
type Config struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	CleanSession   bool
	QoS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	TLSEnabled     bool
	TLSCertFile    string
	TLSKeyFile     string
	TLSCAFile      string
	BufferSize     int
	PublishTimeout time.Duration
}

// DefaultConfig returns a Config with the deployment defaults.
func DefaultConfig() Config {
	return Config{
		BrokerURL:      "tcp://localhost:1883",
		ClientID:       "celima-integration",
		CleanSession:   false,
		QoS:            1,
		KeepAlive:      30 * time.Second,
		ConnectTimeout: 10 * time.Second,
		ReconnectDelay: 5 * time.Second,
		BufferSize:     10000,
		PublishTimeout: 5 * time.Second,
	}
}

// bufferedMessage is a publication waiting for the broker to come back.
type bufferedMessage struct {
	pub      domain.Publication
	buffered time.Time
}

// Stats tracks publisher counters.
type Stats struct {
	Published  atomic.Uint64
	Failed     atomic.Uint64
	Buffered   atomic.Uint64
	BytesSent  atomic.Uint64
	Reconnects atomic.Uint64
}

// StatsSnapshot is the JSON-friendly view served on /status.
type StatsSnapshot struct {
	Published  uint64 `json:"published"`
	Failed     uint64 `json:"failed"`
	Buffered   uint64 `json:"buffered"`
	BytesSent  uint64 `json:"bytes_sent"`
	Reconnects uint64 `json:"reconnects"`
}

// Publisher publishes normalized records to the MQTT broker at QoS 1.
type Publisher struct {
	config    Config
	client    pahomqtt.Client
	logger    zerolog.Logger
	metrics   *metrics.Registry
	breaker   *gobreaker.CircuitBreaker
	mu        sync.RWMutex
	connected atomic.Bool
	buffer    chan bufferedMessage
	done      chan struct{}
	wg        sync.WaitGroup
	stats     *Stats
}

// NewPublisher creates a publisher; Connect must be called before use.
func NewPublisher(config Config, logger zerolog.Logger, metricsReg *metrics.Registry) *Publisher {
	if config.BufferSize == 0 {
		config.BufferSize = 10000
	}
	if config.PublishTimeout == 0 {
		config.PublishTimeout = 5 * time.Second
	}
	if config.KeepAlive == 0 {
		config.KeepAlive = 30 * time.Second
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = 5 * time.Second
	}

	p := &Publisher{
		config:  config,
		logger:  logger.With().Str("component", "mqtt-publisher").Logger(),
		metrics: metricsReg,
		buffer:  make(chan bufferedMessage, config.BufferSize),
		done:    make(chan struct{}),
		stats:   &Stats{},
	}

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mqtt-publish",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			p.logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Publish circuit breaker state changed")
		},
	})

	return p
}

// Connect establishes the broker connection and starts the buffer drainer.
func (p *Publisher) Connect(ctx context.Context) error {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.config.BrokerURL)
	opts.SetClientID(p.config.ClientID)
	opts.SetCleanSession(p.config.CleanSession)
	opts.SetKeepAlive(p.config.KeepAlive)
	opts.SetConnectTimeout(p.config.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(p.config.ReconnectDelay)

	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}

	if p.config.TLSEnabled {
		tlsConfig, err := p.createTLSConfig()
		if err != nil {
			return fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(p.onConnectionLost)
	opts.SetReconnectingHandler(p.onReconnecting)

	p.mu.Lock()
	p.client = pahomqtt.NewClient(opts)
	client := p.client
	p.mu.Unlock()

	p.logger.Info().Str("broker", p.config.BrokerURL).Str("client_id", p.config.ClientID).Msg("Connecting to MQTT broker")

	token := client.Connect()
	connectDone := make(chan bool, 1)
	go func() {
		connectDone <- token.WaitTimeout(p.config.ConnectTimeout)
	}()

	select {
	case ok := <-connectDone:
		if !ok {
			return fmt.Errorf("%w: connection timeout", domain.ErrMQTTConnectionFailed)
		}
		if token.Error() != nil {
			return fmt.Errorf("%w: %v", domain.ErrMQTTConnectionFailed, token.Error())
		}
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrMQTTConnectionFailed, ctx.Err())
	}

	p.connected.Store(true)
	p.done = make(chan struct{})

	p.wg.Add(1)
	go p.processBuffer()

	p.logger.Info().Msg("Connected to MQTT broker")
	return nil
}

// Disconnect drains the buffer and closes the broker connection.
func (p *Publisher) Disconnect() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(1000)
	}
	p.connected.Store(false)
	p.logger.Info().Msg("Disconnected from MQTT broker")
}

// Publish sends one publication at the configured QoS. When the broker is
// unreachable or the breaker is open, the record is buffered and retried by
// the drainer.
func (p *Publisher) Publish(ctx context.Context, pub domain.Publication) error {
	if !p.connected.Load() {
		return p.bufferMessage(pub)
	}

	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publishRaw(ctx, pub)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return p.bufferMessage(pub)
	}
	return err
}

// PublishAll publishes every record, attempting the rest after a failure and
// returning the last error.
func (p *Publisher) PublishAll(ctx context.Context, pubs []domain.Publication) error {
	var lastErr error
	for _, pub := range pubs {
		if err := p.Publish(ctx, pub); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (p *Publisher) publishRaw(ctx context.Context, pub domain.Publication) error {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()

	if client == nil {
		return domain.ErrMQTTNotConnected
	}

	start := time.Now()
	token := client.Publish(pub.Topic, p.config.QoS, false, pub.Payload)

	publishDone := make(chan bool, 1)
	go func() {
		publishDone <- token.WaitTimeout(p.config.PublishTimeout)
	}()

	select {
	case ok := <-publishDone:
		if !ok {
			p.stats.Failed.Add(1)
			p.recordPublish(false, 0)
			return fmt.Errorf("%w: publish timeout", domain.ErrMQTTPublishFailed)
		}
		if token.Error() != nil {
			p.stats.Failed.Add(1)
			p.recordPublish(false, 0)
			return fmt.Errorf("%w: %v", domain.ErrMQTTPublishFailed, token.Error())
		}
	case <-ctx.Done():
		p.stats.Failed.Add(1)
		p.recordPublish(false, 0)
		return fmt.Errorf("%w: %v", domain.ErrMQTTPublishFailed, ctx.Err())
	}

	p.stats.Published.Add(1)
	p.stats.BytesSent.Add(uint64(len(pub.Payload)))
	p.recordPublish(true, time.Since(start).Seconds())
	return nil
}

func (p *Publisher) recordPublish(success bool, seconds float64) {
	if p.metrics != nil {
		p.metrics.RecordPublish(success, seconds)
		p.metrics.SetBufferSize(len(p.buffer))
	}
}

func (p *Publisher) bufferMessage(pub domain.Publication) error {
	msg := bufferedMessage{pub: pub, buffered: time.Now()}
	select {
	case p.buffer <- msg:
		p.stats.Buffered.Add(1)
		if p.metrics != nil {
			p.metrics.SetBufferSize(len(p.buffer))
		}
		return nil
	default:
		// Buffer full: drop the oldest record to keep the newest data moving.
		select {
		case <-p.buffer:
			p.buffer <- msg
			p.logger.Warn().Str("topic", pub.Topic).Msg("Buffer full, dropped oldest message")
			return nil
		default:
			return domain.ErrBufferFull
		}
	}
}

// processBuffer retries buffered publications while connected.
func (p *Publisher) processBuffer() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			p.drainBuffer()
			return
		case msg := <-p.buffer:
			if p.connected.Load() {
				ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
				if err := p.publishRaw(ctx, msg.pub); err != nil {
					p.logger.Warn().Err(err).Str("topic", msg.pub.Topic).Msg("Failed to publish buffered message")
				}
				cancel()
			} else {
				select {
				case p.buffer <- msg:
				default:
				}
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
}

func (p *Publisher) drainBuffer() {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg := <-p.buffer:
			if p.connected.Load() {
				ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
				if err := p.publishRaw(ctx, msg.pub); err != nil {
					p.logger.Warn().Err(err).Str("topic", msg.pub.Topic).Msg("Failed to drain buffered message")
				}
				cancel()
			}
		case <-timeout:
			if remaining := len(p.buffer); remaining > 0 {
				p.logger.Warn().Int("count", remaining).Msg("Timeout draining buffer, messages dropped")
			}
			return
		default:
			return
		}
	}
}

func (p *Publisher) createTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if p.config.TLSCAFile != "" {
		caCert, err := os.ReadFile(p.config.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = pool
	}

	if p.config.TLSCertFile != "" && p.config.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(p.config.TLSCertFile, p.config.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func (p *Publisher) onConnect(client pahomqtt.Client) {
	p.connected.Store(true)
	p.logger.Info().Msg("MQTT connection established")
}

func (p *Publisher) onConnectionLost(client pahomqtt.Client, err error) {
	p.connected.Store(false)
	p.logger.Warn().Err(err).Msg("MQTT connection lost")
}

func (p *Publisher) onReconnecting(client pahomqtt.Client, opts *pahomqtt.ClientOptions) {
	p.stats.Reconnects.Add(1)
	if p.metrics != nil {
		p.metrics.RecordReconnect()
	}
	p.logger.Info().Msg("Attempting to reconnect to MQTT broker")
}

// IsConnected reports the broker connection state.
func (p *Publisher) IsConnected() bool {
	return p.connected.Load()
}

// Stats returns a snapshot of the publisher counters.
func (p *Publisher) Stats() StatsSnapshot {
	return StatsSnapshot{
		Published:  p.stats.Published.Load(),
		Failed:     p.stats.Failed.Load(),
		Buffered:   p.stats.Buffered.Load(),
		BytesSent:  p.stats.BytesSent.Load(),
		Reconnects: p.stats.Reconnects.Load(),
	}
}

// BufferSize returns the number of buffered messages.
func (p *Publisher) BufferSize() int {
	return len(p.buffer)
}

// HealthCheck implements the health.Checker interface.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	if !p.connected.Load() {
		return domain.ErrMQTTNotConnected
	}
	return nil
}

// Client returns the underlying MQTT client, used by the message handler to
// subscribe to the inbound topics on the same session.
func (p *Publisher) Client() pahomqtt.Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}
