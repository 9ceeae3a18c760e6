package source

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/OldStager01/leakwatch/internal/buffer"
	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/models"
)

type MQTTSourceConfig struct {
	Broker         string
	Topic          string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	KeepAlive      uint16
	BufferSize     int
	ConnectTimeout time.Duration
	InstallationID string
}

// MQTTSource keeps the most recent readings pushed by the device on an
// MQTT topic. Payloads carry one reading or an array of them.
type MQTTSource struct {
	cfg       MQTTSourceConfig
	readings  *buffer.SequenceBuffer
	connected atomic.Bool
	now       func() time.Time

	mu     sync.Mutex
	client *paho.Client
}

func NewMQTTSource(cfg MQTTSourceConfig) *MQTTSource {
	if cfg.ClientID == "" {
		cfg.ClientID = "leakwatch-" + models.NewUUID()[:8]
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 30
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	return &MQTTSource{
		cfg:      cfg,
		readings: buffer.NewSequenceBuffer(cfg.BufferSize),
		now:      time.Now,
	}
}

// Connect dials the broker and subscribes to the reading topic.
func (s *MQTTSource) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	log := logger.WithInstallation(s.cfg.InstallationID)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.cfg.Broker)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrFetchFailed, s.cfg.Broker, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: s.cfg.ClientID,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				if err := s.Ingest(pr.Packet.Payload); err != nil {
					log.Warnf("Dropping payload on %s: %v", pr.Packet.Topic, err)
				}
				return true, nil
			},
		},
		OnClientError: func(err error) {
			s.connected.Store(false)
			log.WithError(err).Error("MQTT client error")
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			s.connected.Store(false)
			log.Warnf("MQTT broker disconnected: reason %d", d.ReasonCode)
		},
	})

	connect := &paho.Connect{
		ClientID:   s.cfg.ClientID,
		CleanStart: true,
		KeepAlive:  s.cfg.KeepAlive,
	}
	if s.cfg.Username != "" {
		connect.UsernameFlag = true
		connect.Username = s.cfg.Username
	}
	if s.cfg.Password != "" {
		connect.PasswordFlag = true
		connect.Password = []byte(s.cfg.Password)
	}

	ack, err := client.Connect(ctx, connect)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: connect: %v", ErrFetchFailed, err)
	}
	if ack.ReasonCode != 0 {
		conn.Close()
		return fmt.Errorf("%w: connect refused: reason %d", ErrFetchFailed, ack.ReasonCode)
	}

	if _, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{
			Topic: s.cfg.Topic,
			QoS:   s.cfg.QoS,
		}},
	}); err != nil {
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return fmt.Errorf("%w: subscribe %s: %v", ErrFetchFailed, s.cfg.Topic, err)
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	s.connected.Store(true)

	log.Infof("Subscribed to %s on %s", s.cfg.Topic, s.cfg.Broker)
	return nil
}

// Ingest decodes a payload and keeps its in-range readings.
func (s *MQTTSource) Ingest(payload []byte) error {
	wire, err := decodePayload(payload)
	if err != nil {
		return err
	}

	readings, discarded := convert(wire, s.now())
	if discarded > 0 {
		logger.WithInstallation(s.cfg.InstallationID).Warnf("Discarded %d out-of-range readings", discarded)
	}
	for _, r := range readings {
		s.readings.Push(r)
	}
	return nil
}

func (s *MQTTSource) Latest(ctx context.Context) ([]models.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	readings := s.readings.Snapshot()
	if len(readings) == 0 {
		return nil, ErrNoReadings
	}
	return readings, nil
}

func (s *MQTTSource) HealthCheck(ctx context.Context) error {
	if !s.connected.Load() {
		return fmt.Errorf("%w: not connected to %s", ErrFetchFailed, s.cfg.Broker)
	}
	return nil
}

func (s *MQTTSource) Close() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	s.connected.Store(false)
	if client == nil {
		return nil
	}
	return client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}
