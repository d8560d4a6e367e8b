package charger

import (
	"context"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/config"
	"github.com/berfenger/evcharge2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const DEFAULT_COMMAND_TIMEOUT = 5 * time.Second

// Publisher is the subset of the MQTT client used to command the charger.
type Publisher interface {
	PublishSync(ctx context.Context, topic string, payload any, qos byte, retain bool) error
}

type commandPublisher struct {
	publisher Publisher
	timeout   time.Duration
	logger    *zap.Logger
}

func (p commandPublisher) publish(ctx context.Context, topic, payload string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.publisher.PublishSync(ctx, topic, payload, 1, false)
	if err != nil {
		p.logger.Warn("charger command not acknowledged", zap.String("topic", topic), zap.String("payload", payload), zap.Error(err))
		return err
	}
	p.logger.Debug("charger command sent", zap.String("topic", topic), zap.String("payload", payload))
	return nil
}

// MQTTSwitch turns the charger on and off through its command topic.
type MQTTSwitch struct {
	commandPublisher
	topic      string
	payloadOn  string
	payloadOff string
}

func (s *MQTTSwitch) SetSwitch(ctx context.Context, on bool) error {
	payload := s.payloadOff
	if on {
		payload = s.payloadOn
	}
	return s.publish(ctx, s.topic, payload)
}

// MQTTCurrentSelect publishes the selected current option.
type MQTTCurrentSelect struct {
	commandPublisher
	topic string
}

func (s *MQTTCurrentSelect) SetOption(ctx context.Context, option string) error {
	return s.publish(ctx, s.topic, option)
}

// NewFromConfig creates the configured charger capabilities. A capability without a
// command topic is returned as nil.
func NewFromConfig(cfg config.ChargerConfig, publisher Publisher, logger *zap.Logger) (port.ChargerSwitch, port.ChargerCurrentSelect) {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.CommandTimeoutMillis) * time.Millisecond
	if timeout <= 0 {
		timeout = DEFAULT_COMMAND_TIMEOUT
	}
	base := commandPublisher{publisher: publisher, timeout: timeout, logger: logger}

	var sw port.ChargerSwitch
	if cfg.Switch.CommandTopic != "" {
		sw = &MQTTSwitch{
			commandPublisher: base,
			topic:            cfg.Switch.CommandTopic,
			payloadOn:        orDefault(cfg.Switch.PayloadOn, "on"),
			payloadOff:       orDefault(cfg.Switch.PayloadOff, "off"),
		}
	}
	var sel port.ChargerCurrentSelect
	if cfg.CurrentSelect.CommandTopic != "" {
		sel = &MQTTCurrentSelect{
			commandPublisher: base,
			topic:            cfg.CurrentSelect.CommandTopic,
		}
	}
	return sw, sel
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
