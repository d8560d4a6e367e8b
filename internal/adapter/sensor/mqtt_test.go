package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessage struct {
	topic   string
	payload string
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return []byte(m.payload) }
func (m fakeMessage) Ack()              {}

type fakeSubscriber struct {
	topics []string
	err    error
}

func (s *fakeSubscriber) SubscribeSync(_ context.Context, topic string, _ byte, handler pahomqtt.MessageHandler) error {
	if s.err != nil {
		return s.err
	}
	s.topics = append(s.topics, topic)
	handler(nil, fakeMessage{topic: topic, payload: "1"})
	return nil
}

func TestMQTTSensorPayloads(t *testing.T) {
	ctx := context.Background()
	cache := NewMQTTStateCache(clock.NewMock(), nil)
	sensor := NewMQTTSensor(cache, "ha/sensor/current_l1/state", "", 0)

	_, ok := sensor.Read(ctx)
	assert.False(t, ok, "no state received yet")

	tests := []struct {
		payload string
		value   float64
		ok      bool
	}{
		{"12.5", 12.5, true},
		{" 230 ", 230, true},
		{"-3", -3, true},
		{"unavailable", 0, false},
		{"unknown", 0, false},
		{"Unavailable", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"+Inf", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			cache.HandleMessage(nil, fakeMessage{topic: "ha/sensor/current_l1/state", payload: tt.payload})
			value, ok := sensor.Read(ctx)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestMQTTSensorJSONField(t *testing.T) {
	ctx := context.Background()
	cache := NewMQTTStateCache(clock.NewMock(), nil)
	sensor := NewMQTTSensor(cache, "meter/state", "power", 0)
	assert.Equal(t, "meter/state#power", sensor.Name())

	cache.Update("meter/state", `{"power": 1520.5, "voltage": 231}`)
	value, ok := sensor.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, 1520.5, value)

	cache.Update("meter/state", `{"power": "812"}`)
	value, ok = sensor.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, 812.0, value)

	cache.Update("meter/state", `{"voltage": 231}`)
	_, ok = sensor.Read(ctx)
	assert.False(t, ok)

	cache.Update("meter/state", `not json`)
	_, ok = sensor.Read(ctx)
	assert.False(t, ok)
}

func TestMQTTSensorStale(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	cache := NewMQTTStateCache(clk, nil)
	sensor := NewMQTTSensor(cache, "ha/sensor/voltage_l1/state", "", 30*time.Second)

	cache.Update("ha/sensor/voltage_l1/state", "230")
	clk.Add(30 * time.Second)
	value, ok := sensor.Read(ctx)
	assert.True(t, ok)
	assert.Equal(t, 230.0, value)

	clk.Add(time.Second)
	_, ok = sensor.Read(ctx)
	assert.False(t, ok)

	cache.Update("ha/sensor/voltage_l1/state", "231")
	_, ok = sensor.Read(ctx)
	assert.True(t, ok)
}

func TestMQTTStateCacheSubscribeAll(t *testing.T) {
	cache := NewMQTTStateCache(clock.NewMock(), nil)
	NewMQTTSensor(cache, "a/state", "", 0)
	NewMQTTSensor(cache, "b/state", "", 0)
	NewMQTTSensor(cache, "a/state", "field", 0)
	assert.Equal(t, []string{"a/state", "b/state"}, cache.Topics())

	sub := &fakeSubscriber{}
	require.NoError(t, cache.SubscribeAll(context.Background(), sub))
	assert.Equal(t, []string{"a/state", "b/state"}, sub.topics)

	entry, ok := cache.get("b/state")
	require.True(t, ok)
	assert.Equal(t, "1", entry.payload)

	failing := &fakeSubscriber{err: errors.New("not connected")}
	assert.Error(t, cache.SubscribeAll(context.Background(), failing))
}
