package mqtt

import (
	"fmt"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
)

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic,omitempty"`
	CommandTopic      string            `json:"command_topic,omitempty"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	EntityCategory    string            `json:"entity_category,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
	EnabledByDefault  *bool             `json:"enabled_by_default,omitempty"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	Icon              string            `json:"icon,omitempty"`
	Min               float64           `json:"min,omitempty"`
	Max               float64           `json:"max,omitempty"`
	Step              float64           `json:"step,omitempty"`
	Mode              string            `json:"mode,omitempty"`
	InitialValue      float64           `json:"initial,omitempty"`
	PayloadPress      string            `json:"payload_press,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

const MQTT_PAYLOAD_PRESS = "PRESS"

func discoveryTopic(client *MQTTClient, component string, e domain.Entity) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", client.HADiscoveryTopic(), component, e.Device.Id, e.Id)
}

func HADiscoverySensorTopic(client *MQTTClient, sensor domain.GenericSensor) string {
	return discoveryTopic(client, sensor.SensorType, sensor.Entity)
}

func HADiscoverySwitchTopic(client *MQTTClient, sw domain.GenericSwitch) string {
	return discoveryTopic(client, "switch", sw.Entity)
}

func HADiscoveryInputNumberTopic(client *MQTTClient, number domain.GenericInputNumber) string {
	return discoveryTopic(client, "number", number.Entity)
}

func HADiscoveryButtonTopic(client *MQTTClient, button domain.GenericButton) string {
	return discoveryTopic(client, "button", button.Entity)
}

// baseConfig fills the fields shared by every entity. Entities become
// unavailable when the bridge goes offline.
func baseConfig(client *MQTTClient, e domain.Entity) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:   device(e.Device),
		AvTopic:  client.BridgeStateTopic(),
		Name:     e.Name,
		UniqueId: e.UniqueId,
		Icon:     e.Icon,
		Platform: "mqtt",
	}
}

func GenericSensorToHADiscoveryMessage(client *MQTTClient, sensor domain.GenericSensor) HADiscoveryConfig {
	cfg := baseConfig(client, sensor.Entity)
	cfg.StateClass = sensor.StateClass
	cfg.DeviceClass = sensor.DeviceClass
	cfg.UnitOfMeasurement = sensor.UnitOfMeasurement
	cfg.EntityCategory = sensor.EntityCategory
	cfg.EnabledByDefault = sensor.EnabledByDefault
	switch {
	case sensor.Id == domain.SENSOR_ID_BRIDGE_STATE:
		cfg.StateTopic = client.BridgeStateTopic()
		cfg.PayloadOn = MQTT_PAYLOAD_ONLINE
		cfg.PayloadOff = MQTT_PAYLOAD_OFFLINE
	case sensor.SensorType == domain.SENSOR_TYPE_BINARY:
		cfg.StateTopic = client.BinarySensorStateTopic(sensor.Id)
		cfg.PayloadOn = MQTT_PAYLOAD_ON
		cfg.PayloadOff = MQTT_PAYLOAD_OFF
	default:
		cfg.StateTopic = client.SensorStateTopic(sensor.Id)
	}
	return cfg
}

func GenericSwitchToHADiscoveryMessage(client *MQTTClient, sw domain.GenericSwitch) HADiscoveryConfig {
	cfg := baseConfig(client, sw.Entity)
	cfg.StateTopic = client.SwitchStateTopic(sw.Id)
	cfg.CommandTopic = client.SwitchCommandTopic(sw.Id)
	cfg.PayloadOn = MQTT_PAYLOAD_ON
	cfg.PayloadOff = MQTT_PAYLOAD_OFF
	return cfg
}

func GenericInputNumberToHADiscoveryMessage(client *MQTTClient, number domain.GenericInputNumber) HADiscoveryConfig {
	cfg := baseConfig(client, number.Entity)
	cfg.StateTopic = client.InputNumberStateTopic(number.Id)
	cfg.CommandTopic = client.InputNumberCommandTopic(number.Id)
	cfg.UnitOfMeasurement = number.UnitOfMeasurement
	cfg.Min = number.Min
	cfg.Max = number.Max
	cfg.Step = number.Step
	cfg.Mode = number.Mode
	cfg.InitialValue = number.InitialValue
	return cfg
}

func GenericButtonToHADiscoveryMessage(client *MQTTClient, button domain.GenericButton) HADiscoveryConfig {
	cfg := baseConfig(client, button.Entity)
	cfg.CommandTopic = client.ButtonCommandTopic(button.Id)
	cfg.PayloadPress = MQTT_PAYLOAD_PRESS
	return cfg
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}
