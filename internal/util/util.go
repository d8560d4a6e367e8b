package util

import (
	"github.com/berfenger/evcharge2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "evcharge",
			HADiscoveryTopic: "homeassistant",
		},
		Sensors: config.SensorsConfig{
			MaxImportPower:    config.SensorRef{Source: config.SENSOR_SOURCE_STATIC, Value: 10000},
			AvgImportPower15m: config.SensorRef{Source: config.SENSOR_SOURCE_MQTT, Topic: "homeassistant/sensor/grid_import_15m/state"},
			CurrentL1:         config.SensorRef{Source: config.SENSOR_SOURCE_MQTT, Topic: "homeassistant/sensor/current_l1/state"},
			VoltageL1:         config.SensorRef{Source: config.SENSOR_SOURCE_MQTT, Topic: "homeassistant/sensor/voltage_l1/state"},
		},
		Charger: config.ChargerConfig{
			Switch: config.ChargerSwitchConfig{
				CommandTopic: "wallbox/switch/set",
				PayloadOn:    "ON",
				PayloadOff:   "OFF",
			},
			CurrentSelect: config.ChargerCurrentSelectConfig{
				CommandTopic: "wallbox/current/set",
				Options:      []string{"6", "10", "16", "25", "32"},
			},
			CommandTimeoutMillis: 2000,
		},
		ChargeControl: config.ChargeControlConfig{
			UpdateIntervalSeconds: 10,
			MaxCurrentCap:         32,
			ChargerEnabled:        true,
		},
		Port: 8080,
	}
}
