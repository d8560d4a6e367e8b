package sensor

import (
	"fmt"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/config"
	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/core/port"

	"github.com/benbjohnson/clock"
)

type Deps struct {
	Clock      clock.Clock
	StateCache *MQTTStateCache
	// required only when a sensor uses the modbus source
	Meter *ModbusMeter
}

// NewSensorSet builds the sensors of a snapshot from their configuration.
// Sensors that are not configured stay nil.
func NewSensorSet(cfg *config.Config, deps Deps) (port.SensorSet, error) {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	var set port.SensorSet
	var err error

	s := cfg.Sensors
	staleAfter := time.Duration(s.StaleAfterSeconds) * time.Second
	build := func(name string, ref config.SensorRef) port.Sensor {
		if err != nil {
			return nil
		}
		var sensor port.Sensor
		sensor, err = newSensor(name, ref, staleAfter, deps)
		return sensor
	}

	set.MaxImportPower = build("max_import_power", s.MaxImportPower)
	set.AvgImportPower15m = build("avg_import_power_15m", s.AvgImportPower15m)
	set.PhaseCurrent[domain.PHASE_L1] = build("current_l1", s.CurrentL1)
	set.PhaseCurrent[domain.PHASE_L2] = build("current_l2", s.CurrentL2)
	set.PhaseCurrent[domain.PHASE_L3] = build("current_l3", s.CurrentL3)
	set.PhaseVoltage[domain.PHASE_L1] = build("voltage_l1", s.VoltageL1)
	set.PhaseVoltage[domain.PHASE_L2] = build("voltage_l2", s.VoltageL2)
	set.PhaseVoltage[domain.PHASE_L3] = build("voltage_l3", s.VoltageL3)
	set.ChargerCurrent[domain.PHASE_L1] = build("charger_current_l1", s.ChargerCurrentL1)
	set.ChargerCurrent[domain.PHASE_L2] = build("charger_current_l2", s.ChargerCurrentL2)
	set.ChargerCurrent[domain.PHASE_L3] = build("charger_current_l3", s.ChargerCurrentL3)
	if err != nil {
		return port.SensorSet{}, err
	}
	return set, nil
}

func newSensor(name string, ref config.SensorRef, staleAfter time.Duration, deps Deps) (port.Sensor, error) {
	param := "sensors." + name
	var sensor port.Sensor
	switch ref.Source {
	case "":
		return nil, nil
	case config.SENSOR_SOURCE_MQTT:
		if deps.StateCache == nil {
			return nil, &domain.ConfigurationError{Param: param, Reason: "mqtt state cache not available"}
		}
		sensor = NewMQTTSensor(deps.StateCache, ref.Topic, ref.Field, staleAfter)
	case config.SENSOR_SOURCE_MODBUS:
		if deps.Meter == nil {
			return nil, &domain.ConfigurationError{Param: param, Reason: "modbus meter not configured"}
		}
		modbusSensor, err := NewModbusSensor(deps.Meter, ref.ModbusField)
		if err != nil {
			return nil, &domain.ConfigurationError{Param: param + ".modbus_field", Reason: err.Error()}
		}
		sensor = modbusSensor
	case config.SENSOR_SOURCE_STATIC:
		sensor = NewStaticSensor(name, ref.Value)
	default:
		return nil, &domain.ConfigurationError{Param: param + ".source", Reason: fmt.Sprintf("unknown source %q", ref.Source)}
	}
	if ref.AverageSeconds > 0 {
		sensor = NewAverageSensor(sensor, time.Duration(ref.AverageSeconds)*time.Second, deps.Clock)
	}
	return sensor, nil
}
