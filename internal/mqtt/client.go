package mqtt

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"
)

var ErrTimeout = errors.New("MQTT operation timed out")

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := baseOpts(cfg, "evcharge")
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

// BridgeOptsFromConfig builds options for the connection that reads Home Assistant
// states and commands the charger. It carries no last will.
func BridgeOptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := baseOpts(cfg, "evcharge_io")
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	return opts
}

func baseOpts(cfg *config.Config, clientPrefix string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("%s_%d", clientPrefix, rand.IntN(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:        mqtt.NewClient(opts),
		cfg:           cfg.MQTT,
		commandRegexp: commandExtractor(cfg.MQTT.BaseTopic),
	}
}

type MQTTClient struct {
	client        mqtt.Client
	cfg           config.MQTTConfig
	commandRegexp *regexp.Regexp
}

type ParsedMQTTCommand struct {
	DeviceId string
	Command  string
	Param    string
	Payload  string
}

// command topic suffix per entity component
var commandSuffixes = map[string]string{
	"switch": "command",
	"number": "set",
	"button": "press",
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) entityTopic(component, id, suffix string) string {
	return fmt.Sprintf("%s/%s/%s/%s", c.baseTopic(), component, id, suffix)
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return c.entityTopic("sensor", sensorId, "state")
}

func (c *MQTTClient) BinarySensorStateTopic(sensorId string) string {
	return c.entityTopic("binary_sensor", sensorId, "state")
}

func (c *MQTTClient) SwitchStateTopic(switchId string) string {
	return c.entityTopic("switch", switchId, "state")
}

func (c *MQTTClient) SwitchCommandTopic(switchId string) string {
	return c.entityTopic("switch", switchId, commandSuffixes["switch"])
}

func (c *MQTTClient) InputNumberStateTopic(id string) string {
	return c.entityTopic("number", id, "state")
}

func (c *MQTTClient) InputNumberCommandTopic(id string) string {
	return c.entityTopic("number", id, commandSuffixes["number"])
}

func (c *MQTTClient) ButtonCommandTopic(id string) string {
	return c.entityTopic("button", id, commandSuffixes["button"])
}

func (c *MQTTClient) HADiscoveryTopic() string {
	if c.cfg.HADiscoveryTopic == "" {
		return "homeassistant"
	}
	return c.cfg.HADiscoveryTopic
}

func (c *MQTTClient) IsConnected() bool {
	return c.client.IsConnected()
}

// ParseMQTTCommand extracts an entity command from a message received on the command topic.
func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	matches := c.commandRegexp.FindStringSubmatch(msg.Topic())
	if len(matches) != 4 {
		return nil, fmt.Errorf("not a command topic: %s", msg.Topic())
	}
	component, id, suffix := matches[1], matches[2], matches[3]
	if commandSuffixes[component] != suffix {
		return nil, fmt.Errorf("invalid %s command topic: %s", component, msg.Topic())
	}
	payload := string(msg.Payload())
	if component == "number" {
		if _, err := strconv.ParseFloat(payload, 64); err != nil {
			return nil, fmt.Errorf("invalid number payload %q: %w", payload, err)
		}
	}
	return &ParsedMQTTCommand{
		DeviceId: id,
		Command:  component,
		Payload:  payload,
	}, nil
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	waitAsync(c.client.Publish(topic, qos, retain, payload), "publish", continuation, timeout)
}

// PublishSync publishes and waits for the broker acknowledgement or the context deadline.
func (c *MQTTClient) PublishSync(ctx context.Context, topic string, payload any, qos byte, retain bool) error {
	return waitToken(ctx, c.client.Publish(topic, qos, retain, payload))
}

// SubscribeSync subscribes and waits for the broker acknowledgement.
func (c *MQTTClient) SubscribeSync(ctx context.Context, topic string, qos byte, handler mqtt.MessageHandler) error {
	return waitToken(ctx, c.client.Subscribe(topic, qos, handler))
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

// waitAsync reports the outcome of token to continuation from a new goroutine.
func waitAsync(token mqtt.Token, op string, continuation func(error), timeout time.Duration) {
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(fmt.Errorf("MQTT %s: %w", op, ErrTimeout))
			return
		}
		continuation(token.Error())
	}()
}

func (c *MQTTClient) SubscribeToCommandTopic(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	waitAsync(c.client.Subscribe(c.commandTopic(), 1, handler), "subscribe", continuation, timeout)
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	waitAsync(c.client.Connect(), "connect", continuation, timeout)
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func (c *MQTTClient) commandTopic() string {
	return fmt.Sprintf("%s/#", c.baseTopic())
}

func commandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(baseTopic) + "/(switch|number|button)/([a-zA-Z0-9_]+)/([a-z]+)$")
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
