package sensor

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var unavailablePayloads = []string{"", "unavailable", "unknown", "none", "null"}

// Subscriber is the subset of the MQTT client the state cache needs.
type Subscriber interface {
	SubscribeSync(ctx context.Context, topic string, qos byte, handler pahomqtt.MessageHandler) error
}

type stateEntry struct {
	payload    string
	receivedAt time.Time
}

// MQTTStateCache keeps the last payload received on every watched state topic.
type MQTTStateCache struct {
	topics []string
	states map[string]stateEntry
	clock  clock.Clock
	logger *zap.Logger
	lock   sync.RWMutex
}

func NewMQTTStateCache(clk clock.Clock, logger *zap.Logger) *MQTTStateCache {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTStateCache{
		states: make(map[string]stateEntry),
		clock:  clk,
		logger: logger,
	}
}

// Watch registers a topic. Subscriptions happen on SubscribeAll.
func (c *MQTTStateCache) Watch(topic string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, t := range c.topics {
		if t == topic {
			return
		}
	}
	c.topics = append(c.topics, topic)
}

func (c *MQTTStateCache) Topics() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return append([]string(nil), c.topics...)
}

// SubscribeAll subscribes to every watched topic. It must run again after a reconnect.
func (c *MQTTStateCache) SubscribeAll(ctx context.Context, sub Subscriber) error {
	for _, topic := range c.Topics() {
		if err := sub.SubscribeSync(ctx, topic, 1, c.HandleMessage); err != nil {
			return err
		}
		c.logger.Debug("sensor state subscribed", zap.String("topic", topic))
	}
	return nil
}

func (c *MQTTStateCache) HandleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	c.Update(msg.Topic(), string(msg.Payload()))
}

func (c *MQTTStateCache) Update(topic, payload string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.states[topic] = stateEntry{payload: payload, receivedAt: c.clock.Now()}
}

func (c *MQTTStateCache) get(topic string) (stateEntry, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	entry, ok := c.states[topic]
	return entry, ok
}

// MQTTSensor reads a numeric state from the cache. When field is set the payload
// is decoded as a JSON object and the value taken from that field.
type MQTTSensor struct {
	cache      *MQTTStateCache
	topic      string
	field      string
	staleAfter time.Duration
}

func NewMQTTSensor(cache *MQTTStateCache, topic, field string, staleAfter time.Duration) *MQTTSensor {
	cache.Watch(topic)
	return &MQTTSensor{
		cache:      cache,
		topic:      topic,
		field:      field,
		staleAfter: staleAfter,
	}
}

func (s *MQTTSensor) Name() string {
	if s.field != "" {
		return s.topic + "#" + s.field
	}
	return s.topic
}

func (s *MQTTSensor) Read(_ context.Context) (float64, bool) {
	entry, ok := s.cache.get(s.topic)
	if !ok {
		return 0, false
	}
	if s.staleAfter > 0 && s.cache.clock.Since(entry.receivedAt) > s.staleAfter {
		return 0, false
	}
	if s.field == "" {
		return parseNumericState(entry.payload)
	}
	return parseJSONField(entry.payload, s.field)
}

func parseNumericState(payload string) (float64, bool) {
	payload = strings.TrimSpace(payload)
	for _, p := range unavailablePayloads {
		if strings.EqualFold(payload, p) {
			return 0, false
		}
	}
	value, err := strconv.ParseFloat(payload, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func parseJSONField(payload, field string) (float64, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return 0, false
	}
	switch v := obj[field].(type) {
	case float64:
		return v, true
	case string:
		return parseNumericState(v)
	default:
		return 0, false
	}
}
