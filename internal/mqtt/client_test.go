package mqtt

import (
	"testing"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandExtractor(t *testing.T) {
	r := commandExtractor("loremTopic")
	tests := []struct {
		topic string
		want  []string
	}{
		{"loremTopic/switch/my_device/command", []string{"switch", "my_device", "command"}},
		{"loremTopic/number/number_name/set", []string{"number", "number_name", "set"}},
		{"loremTopic/button/update_now/press", []string{"button", "update_now", "press"}},
		{"loremTopic/sensor/my_device/state", nil},
		{"other/switch/my_device/command", nil},
		{"loremTopic/switch/my_device/command/extra", nil},
	}
	for _, tt := range tests {
		matches := r.FindStringSubmatch(tt.topic)
		if tt.want == nil {
			assert.Empty(t, matches, tt.topic)
			continue
		}
		require.Len(t, matches, 4, tt.topic)
		assert.Equal(t, tt.want, matches[1:], tt.topic)
	}
}

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

func TestParseMQTTCommand(t *testing.T) {
	cfg := util.LoadTestConfig()
	client := CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)

	tests := []struct {
		topic   string
		payload string
		want    *ParsedMQTTCommand
	}{
		{"evcharge/switch/manual_override/command", "on", &ParsedMQTTCommand{DeviceId: "manual_override", Command: "switch", Payload: "on"}},
		{"evcharge/number/max_current_cap/set", "16", &ParsedMQTTCommand{DeviceId: "max_current_cap", Command: "number", Payload: "16"}},
		{"evcharge/button/update_now/press", "PRESS", &ParsedMQTTCommand{DeviceId: "update_now", Command: "button", Payload: "PRESS"}},
		{"evcharge/number/max_current_cap/set", "lots", nil},
		{"evcharge/switch/manual_override/set", "on", nil},
		{"evcharge/switch/manual_override/state", "on", nil},
		{"evcharge/sensor/household_power/state", "100", nil},
	}
	for _, tt := range tests {
		cmd, err := client.ParseMQTTCommand(fakeMessage{topic: tt.topic, payload: tt.payload})
		if tt.want == nil {
			assert.Error(t, err, tt.topic)
			continue
		}
		require.NoError(t, err, tt.topic)
		assert.Equal(t, tt.want, cmd)
	}
}

func TestStateTopics(t *testing.T) {
	cfg := util.LoadTestConfig()
	client := CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)

	assert.Equal(t, "evcharge/bridge/state", client.BridgeStateTopic())
	assert.Equal(t, "evcharge/binary_sensor/charging_allowed/state", client.BinarySensorStateTopic("charging_allowed"))
	assert.Equal(t, "evcharge/button/update_now/press", client.ButtonCommandTopic("update_now"))
	assert.Equal(t, "homeassistant/button/dev/update_now/config",
		HADiscoveryButtonTopic(client, domain.GenericButton{Entity: domain.NewEntity(domain.Device{Id: "dev"}, "update_now", "Update", "")}))
}
