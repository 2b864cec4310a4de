// Package mqtt publishes colour commands to an MQTT broker for bridges that are driven
// by home-automation hubs instead of a LAN protocol.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/scheerer/ambient-video-lights/internal/logging"
	"github.com/scheerer/ambient-video-lights/lights"
)

var logger = logging.New("mqtt")

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

type Encoding int

const (
	JSON Encoding = iota
	MsgPack
)

func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JSON", "":
		return JSON, nil
	case "MSGPACK":
		return MsgPack, nil
	}
	return 0, fmt.Errorf("unknown mqtt encoding: %q", s)
}

func (e Encoding) String() string {
	if e == MsgPack {
		return "MSGPACK"
	}
	return "JSON"
}

type Config struct {
	Broker     string
	Topic      string
	ClientID   string
	InstanceID string
	QoS        byte
	Encoding   Encoding
}

// Command is the payload published for every colour change.
type Command struct {
	InstanceID   string       `json:"instance_id" msgpack:"instance_id"`
	Color        lights.Color `json:"color" msgpack:"color"`
	Hex          string       `json:"hex" msgpack:"hex"`
	TransitionMs int64        `json:"transition_ms" msgpack:"transition_ms"`
	Timestamp    time.Time    `json:"ts" msgpack:"ts"`
}

func (e Encoding) Marshal(cmd Command) ([]byte, error) {
	if e == MsgPack {
		return msgpack.Marshal(cmd)
	}
	return json.Marshal(cmd)
}

func (e Encoding) Unmarshal(data []byte, cmd *Command) error {
	if e == MsgPack {
		return msgpack.Unmarshal(data, cmd)
	}
	return json.Unmarshal(data, cmd)
}

type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

type MQTTLights struct {
	config Config
	client paho.Client

	connected atomic.Bool
	published atomic.Uint64
	errors    atomic.Uint64

	stopOnce sync.Once
}

var _ lights.LightService = (*MQTTLights)(nil)

func NewMQTT(ctx context.Context, config Config) (*MQTTLights, error) {
	if config.Broker == "" || config.Topic == "" {
		return nil, fmt.Errorf("mqtt broker and topic are required")
	}

	m := &MQTTLights{config: config}

	opts := paho.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c paho.Client) {
		m.connected.Store(true)
		logger.With(zap.String("broker", config.Broker), zap.String("clientID", config.ClientID)).Info("MQTT connection established")
	}
	opts.OnConnectionLost = func(c paho.Client, err error) {
		m.connected.Store(false)
		logger.With(zap.String("broker", config.Broker), zap.Error(err)).Warn("MQTT connection lost, will auto-reconnect")
	}

	m.client = paho.NewClient(opts)
	go m.Start(ctx)
	return m, nil
}

// Start connects to the broker and disconnects once ctx is done. Reconnection is left to the client.
func (m *MQTTLights) Start(ctx context.Context) {
	logger.With(zap.String("broker", m.config.Broker)).Info("Connecting to MQTT broker")

	token := m.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logger.With(zap.String("broker", m.config.Broker)).Warn("MQTT connection still pending, retrying in background")
	} else if err := token.Error(); err != nil {
		logger.With(zap.String("broker", m.config.Broker), zap.Error(err)).Error("MQTT connection failed")
	}

	<-ctx.Done()
	m.Stop()
}

func (m *MQTTLights) Stop() {
	m.stopOnce.Do(func() {
		m.client.Disconnect(250)
		m.connected.Store(false)
		logger.Info("MQTT disconnected")
	})
}

func (m *MQTTLights) LightCount() int {
	if m.connected.Load() {
		return 1
	}
	return 0
}

func (m *MQTTLights) Stats() Stats {
	return Stats{
		Connected: m.connected.Load(),
		Published: m.published.Load(),
		Errors:    m.errors.Load(),
	}
}

func (m *MQTTLights) SetColorWithDuration(ctx context.Context, color lights.Color, duration time.Duration) {
	if !m.connected.Load() {
		m.errors.Add(1)
		logger.With(zap.Stringer("color", color)).Debug("MQTT not connected, skipping color")
		return
	}

	payload, err := m.config.Encoding.Marshal(Command{
		InstanceID:   m.config.InstanceID,
		Color:        color,
		Hex:          color.String(),
		TransitionMs: duration.Milliseconds(),
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		m.errors.Add(1)
		logger.With(zap.Error(err)).Error("Failed to encode MQTT color command")
		return
	}

	token := m.client.Publish(m.config.Topic, m.config.QoS, false, payload)
	select {
	case <-token.Done():
	case <-time.After(publishTimeout):
		m.errors.Add(1)
		logger.With(zap.String("topic", m.config.Topic)).Warn("MQTT publish timed out")
		return
	case <-ctx.Done():
		return
	}
	if err := token.Error(); err != nil {
		m.errors.Add(1)
		logger.With(zap.String("topic", m.config.Topic), zap.Error(err)).Warn("MQTT publish failed")
		return
	}

	m.published.Add(1)
	logger.With(zap.String("topic", m.config.Topic),
		zap.Stringer("color", color),
		zap.Int("size", len(payload))).
		Debug("Color published")
}
