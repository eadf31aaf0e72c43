// Package telemetry publishes archive events to an MQTT broker.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/aof-gg/aofkeeper/internal/config"
	"github.com/aof-gg/aofkeeper/internal/events"
	"github.com/aof-gg/aofkeeper/internal/util"
)

// Topic suffixes, appended to the configured prefix.
const (
	TopicReplaySaved    = "replays/saved"
	TopicReplayLoaded   = "replays/loaded"
	TopicReplayRejected = "replays/rejected"
	TopicReplayDeleted  = "replays/deleted"
	TopicReplayPruned   = "replays/pruned"
	TopicCatalog        = "catalog/reconciled"
	TopicDiskAlert      = "manager/disk"
	TopicHeartbeat      = "manager/heartbeat"
	TopicManagerAdmin   = "manager/admin"
)

// ErrDisabled is returned by NewMQTTHandler when MQTT is turned off.
var ErrDisabled = errors.New("MQTT is disabled")

// MQTTHandler forwards archive events to the broker as JSON messages.
type MQTTHandler struct {
	cfg      config.MQTTConfig
	eventBus *events.EventBus
	client   mqtt.Client
	logger   zerolog.Logger

	// included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a handler for the configured broker. It does not
// connect until Start.
func NewMQTTHandler(cfg config.MQTTConfig, eventBus *events.EventBus, version string) (*MQTTHandler, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	sysInfo := util.GetSystemInfo()
	h := newHandler(cfg, eventBus, nil, hostMetadata(sysInfo, version))

	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.BrokerURL, cfg.Port))

	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("aofkeeper-%s", sysInfo.Hostname))
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	if cfg.UseTLS {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		h.logger.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		h.logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	h.client = mqtt.NewClient(opts)
	return h, nil
}

func newHandler(cfg config.MQTTConfig, bus *events.EventBus, client mqtt.Client, metadata map[string]interface{}) *MQTTHandler {
	return &MQTTHandler{
		cfg:      cfg,
		eventBus: bus,
		client:   client,
		logger:   util.ComponentLogger("mqtt"),
		metadata: metadata,
	}
}

func hostMetadata(info util.SystemInfo, version string) map[string]interface{} {
	return map[string]interface{}{
		"hostname":    info.Hostname,
		"os":          info.OS,
		"cpu_model":   info.CPUModel,
		"cpu_cores":   info.CPUCores,
		"memory_mb":   info.TotalMemory,
		"app_version": version,
	}
}

func buildTLSConfig(cfg config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in MQTT CA file %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// Start connects to the broker, forwards events until ctx is cancelled and
// then publishes a shutdown notice and disconnects.
func (h *MQTTHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("broker", h.cfg.BrokerURL).
		Int("port", h.cfg.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()

	<-ctx.Done()

	h.unsubscribeEvents()
	h.PublishShutdown()
	h.client.Disconnect(5000)
	h.logger.Info().Msg("MQTT disconnected")

	return nil
}

var forwarded = map[events.EventType]string{
	events.EventReplaySaved:    TopicReplaySaved,
	events.EventReplayLoaded:   TopicReplayLoaded,
	events.EventReplayRejected: TopicReplayRejected,
	events.EventReplayDeleted:  TopicReplayDeleted,
	events.EventReplayPruned:   TopicReplayPruned,

	events.EventCatalogReconciled: TopicCatalog,
	events.EventDiskAlert:         TopicDiskAlert,
	events.EventHeartbeat:         TopicHeartbeat,
}

func (h *MQTTHandler) subscribeEvents() {
	for eventType, topic := range forwarded {
		h.eventBus.Subscribe(eventType, "mqtt."+string(eventType), h.forward(topic))
	}
}

func (h *MQTTHandler) unsubscribeEvents() {
	for eventType := range forwarded {
		h.eventBus.Unsubscribe(eventType, "mqtt."+string(eventType))
	}
}

func (h *MQTTHandler) forward(topic string) events.HandlerFunc {
	return func(_ context.Context, event events.Event) error {
		h.publish(topic, string(event.Type), event.Payload)
		return nil
	}
}

func (h *MQTTHandler) topic(suffix string) string {
	if h.cfg.TopicPrefix == "" {
		return suffix
	}
	return h.cfg.TopicPrefix + "/" + suffix
}

// publish sends a JSON message. Messages are dropped while disconnected.
func (h *MQTTHandler) publish(suffix, event string, payload interface{}) {
	if !h.client.IsConnected() {
		return
	}

	topic := h.topic(suffix)
	data, err := json.Marshal(h.buildMessage(event, payload))
	if err != nil {
		h.logger.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.client.Publish(topic, 1, false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			h.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

func (h *MQTTHandler) buildMessage(event string, payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(h.metadata)+3)
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["event"] = event
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return msg
}

// PublishShutdown sends a shutdown message to the broker.
func (h *MQTTHandler) PublishShutdown() {
	h.publish(TopicManagerAdmin, string(events.EventShutdown), nil)
}
