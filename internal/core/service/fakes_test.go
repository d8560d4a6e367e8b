package service

import (
	"context"
	"errors"
	"math"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/core/port"
)

type fakeSensor struct {
	name      string
	value     float64
	available bool
}

func (s *fakeSensor) Read(ctx context.Context) (float64, bool) {
	return s.value, s.available
}

func (s *fakeSensor) Name() string {
	return s.name
}

func sensor(name string, value float64) *fakeSensor {
	return &fakeSensor{name: name, value: value, available: true}
}

var errChargerOffline = errors.New("charger offline")

type recordingCharger struct {
	calls      []string
	failSwitch bool
	failSelect bool
}

func (c *recordingCharger) SetSwitch(ctx context.Context, on bool) error {
	if on {
		c.calls = append(c.calls, "on")
	} else {
		c.calls = append(c.calls, "off")
	}
	if c.failSwitch {
		return errChargerOffline
	}
	return nil
}

func (c *recordingCharger) SetOption(ctx context.Context, option string) error {
	c.calls = append(c.calls, "set:"+option)
	if c.failSelect {
		return errChargerOffline
	}
	return nil
}

func (c *recordingCharger) reset() {
	c.calls = nil
}

// singlePhase builds a sensor set for one 230V phase.
func singlePhase(maxImport, avg15m, current float64) *port.SensorSet {
	return &port.SensorSet{
		MaxImportPower:    sensor("sensor.max_import_power", maxImport),
		AvgImportPower15m: sensor("sensor.avg_import_power_15m", avg15m),
		PhaseCurrent:      [domain.PHASE_COUNT]port.Sensor{sensor("sensor.current_l1", current)},
		PhaseVoltage:      [domain.PHASE_COUNT]port.Sensor{sensor("sensor.voltage_l1", 230)},
	}
}

func snapshot1p(maxImport, avg15m, current float64) *domain.MeasurementSnapshot {
	return &domain.MeasurementSnapshot{
		MaxImportPowerWatt:    maxImport,
		AvgImportPower15mWatt: avg15m,
		PhaseCurrentAmps:      [domain.PHASE_COUNT]float64{current},
		PhaseVoltageVolts:     [domain.PHASE_COUNT]float64{230},
	}
}

func settingsWithSteps(steps ...int) domain.ControlSettings {
	s := domain.DefaultControlSettings()
	s.CurrentSteps = steps
	return s
}

// greatestStep is the reference quantization used by property checks.
func greatestStep(target float64, minCurrent int, steps []int) (int, bool) {
	best := math.MinInt
	for _, s := range steps {
		if s >= minCurrent && float64(s) <= target && s > best {
			best = s
		}
	}
	return best, best != math.MinInt
}
