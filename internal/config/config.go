package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"

	"go.uber.org/zap/zapcore"
)

const (
	SENSOR_SOURCE_MQTT   = "mqtt"
	SENSOR_SOURCE_MODBUS = "modbus"
	SENSOR_SOURCE_STATIC = "static"
)

type Config struct {
	LogLevel       zapcore.Level
	MQTT           MQTTConfig           `mapstructure:"mqtt"`
	MeterModbusTcp MeterModbusTCPConfig `mapstructure:"meter_modbus_tcp"`

	Sensors       SensorsConfig       `mapstructure:"sensors"`
	Charger       ChargerConfig       `mapstructure:"charger"`
	ChargeControl ChargeControlConfig `mapstructure:"charge_control"`
	Port          uint                `mapstructure:"port"`
	HttpLog       bool                `mapstructure:"http_log"`
}

type MeterModbusTCPConfig struct {
	Host          string
	Port          uint
	MeterId       uint `mapstructure:"meter_id"`
	IgnoreFronius bool `mapstructure:"ignore_fronius"`
	TimeoutMillis uint `mapstructure:"timeout_millis"`
}

func (c MeterModbusTCPConfig) Enabled() bool {
	return c.Host != ""
}

// SensorRef points to the source of one measurement. An empty Source means not configured.
type SensorRef struct {
	Source string
	// mqtt: state topic, and optional JSON field holding the value
	Topic string
	Field string
	// modbus: one of the AC meter fields
	ModbusField string `mapstructure:"modbus_field"`
	// static: constant value
	Value float64
	// when > 0, the sensor reports the rolling average over this many seconds
	AverageSeconds uint32 `mapstructure:"average_seconds"`
}

func (r SensorRef) Configured() bool {
	return r.Source != ""
}

type SensorsConfig struct {
	MaxImportPower    SensorRef `mapstructure:"max_import_power"`
	AvgImportPower15m SensorRef `mapstructure:"avg_import_power_15m"`
	CurrentL1         SensorRef `mapstructure:"current_l1"`
	CurrentL2         SensorRef `mapstructure:"current_l2"`
	CurrentL3         SensorRef `mapstructure:"current_l3"`
	VoltageL1         SensorRef `mapstructure:"voltage_l1"`
	VoltageL2         SensorRef `mapstructure:"voltage_l2"`
	VoltageL3         SensorRef `mapstructure:"voltage_l3"`
	ChargerCurrentL1  SensorRef `mapstructure:"charger_current_l1"`
	ChargerCurrentL2  SensorRef `mapstructure:"charger_current_l2"`
	ChargerCurrentL3  SensorRef `mapstructure:"charger_current_l3"`
	// mqtt values older than this are unavailable, 0 disables the check
	StaleAfterSeconds uint32 `mapstructure:"stale_after_seconds"`
}

// Named lists every sensor reference with its configuration key.
func (s SensorsConfig) Named() map[string]SensorRef {
	return map[string]SensorRef{
		"max_import_power":     s.MaxImportPower,
		"avg_import_power_15m": s.AvgImportPower15m,
		"current_l1":           s.CurrentL1,
		"current_l2":           s.CurrentL2,
		"current_l3":           s.CurrentL3,
		"voltage_l1":           s.VoltageL1,
		"voltage_l2":           s.VoltageL2,
		"voltage_l3":           s.VoltageL3,
		"charger_current_l1":   s.ChargerCurrentL1,
		"charger_current_l2":   s.ChargerCurrentL2,
		"charger_current_l3":   s.ChargerCurrentL3,
	}
}

type ChargerSwitchConfig struct {
	CommandTopic string `mapstructure:"command_topic"`
	PayloadOn    string `mapstructure:"payload_on"`
	PayloadOff   string `mapstructure:"payload_off"`
}

type ChargerCurrentSelectConfig struct {
	CommandTopic string   `mapstructure:"command_topic"`
	Options      []string `mapstructure:"options"`
}

type ChargerConfig struct {
	Switch               ChargerSwitchConfig        `mapstructure:"switch"`
	CurrentSelect        ChargerCurrentSelectConfig `mapstructure:"current_select"`
	CommandTimeoutMillis uint32                     `mapstructure:"command_timeout_millis"`
}

type ChargeControlConfig struct {
	UpdateIntervalSeconds uint32 `mapstructure:"update_interval_seconds"`
	MaxCurrentCap         int    `mapstructure:"max_current_cap"`
	ManualOverride        bool   `mapstructure:"manual_override"`
	ChargerEnabled        bool   `mapstructure:"charger_enabled"`
}

func (c ChargeControlConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// CurrentSteps derives the current levels the charger accepts. Without a current
// select every integer between the minimum and maximum current is allowed.
func (c *Config) CurrentSteps() ([]int, error) {
	if c.Charger.CurrentSelect.CommandTopic == "" && len(c.Charger.CurrentSelect.Options) == 0 {
		return domain.ContiguousCurrentSteps(domain.MIN_CURRENT_AMPS, domain.MAX_CURRENT_AMPS), nil
	}
	return domain.ParseCurrentSteps(c.Charger.CurrentSelect.Options)
}

func (c *Config) ControlSettings() (domain.ControlSettings, error) {
	steps, err := c.CurrentSteps()
	if err != nil {
		return domain.ControlSettings{}, err
	}
	return domain.ControlSettings{
		MinCurrentAmps:    domain.MIN_CURRENT_AMPS,
		MaxCurrentCapAmps: c.ChargeControl.MaxCurrentCap,
		CurrentSteps:      steps,
		UpdateInterval:    c.ChargeControl.UpdateInterval(),
	}, nil
}

func (c *Config) ControlFlags() domain.ControlFlags {
	return domain.ControlFlags{
		ManualOverride: c.ChargeControl.ManualOverride,
		ChargerEnabled: c.ChargeControl.ChargerEnabled,
	}
}

// Validate checks the charge control setup. Any error blocks startup.
func (c *Config) Validate() error {
	if err := domain.ValidateUpdateInterval(c.ChargeControl.UpdateInterval()); err != nil {
		return err
	}
	if err := domain.ValidateMaxCurrentCap(c.ChargeControl.MaxCurrentCap); err != nil {
		return err
	}
	if _, err := c.CurrentSteps(); err != nil {
		return err
	}

	required := map[string]SensorRef{
		"max_import_power":     c.Sensors.MaxImportPower,
		"avg_import_power_15m": c.Sensors.AvgImportPower15m,
		"current_l1":           c.Sensors.CurrentL1,
		"voltage_l1":           c.Sensors.VoltageL1,
	}
	for name, ref := range required {
		if !ref.Configured() {
			return &domain.ConfigurationError{Param: "sensors." + name, Reason: "required sensor not configured"}
		}
	}
	for name, ref := range c.Sensors.Named() {
		if err := c.validateSensorRef(name, ref); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateSensorRef(name string, ref SensorRef) error {
	param := "sensors." + name
	switch ref.Source {
	case "":
		return nil
	case SENSOR_SOURCE_MQTT:
		if ref.Topic == "" {
			return &domain.ConfigurationError{Param: param + ".topic", Reason: "mqtt sensor needs a topic"}
		}
	case SENSOR_SOURCE_MODBUS:
		if !c.MeterModbusTcp.Enabled() {
			return &domain.ConfigurationError{Param: param, Reason: "modbus sensor needs meter_modbus_tcp.host"}
		}
		if ref.ModbusField == "" {
			return &domain.ConfigurationError{Param: param + ".modbus_field", Reason: "modbus sensor needs a field"}
		}
	case SENSOR_SOURCE_STATIC:
	default:
		return &domain.ConfigurationError{Param: param + ".source", Reason: fmt.Sprintf("unknown source %q", ref.Source)}
	}
	return nil
}
