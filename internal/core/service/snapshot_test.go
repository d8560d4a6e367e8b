package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSnapshot(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sensors := port.SensorSet{
		MaxImportPower:    sensor("max", 10000),
		AvgImportPower15m: sensor("avg", 2000),
		PhaseCurrent:      [domain.PHASE_COUNT]port.Sensor{sensor("i1", 10), sensor("i2", 11), &fakeSensor{name: "i3"}},
		PhaseVoltage:      [domain.PHASE_COUNT]port.Sensor{sensor("v1", 230), sensor("v2", 231)},
		ChargerCurrent:    [domain.PHASE_COUNT]port.Sensor{sensor("c1", 6)},
	}

	s, err := BuildSnapshot(context.Background(), sensors, now)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, s.MaxImportPowerWatt)
	assert.Equal(t, 2000.0, s.AvgImportPower15mWatt)
	assert.Equal(t, [domain.PHASE_COUNT]float64{10, 11, 0}, s.PhaseCurrentAmps)
	assert.Equal(t, [domain.PHASE_COUNT]float64{230, 231, 0}, s.PhaseVoltageVolts)
	assert.True(t, s.HasChargerCurrent)
	assert.Equal(t, [domain.PHASE_COUNT]float64{6, 0, 0}, s.ChargerCurrentAmps)
	assert.Equal(t, now, s.Timestamp)
}

func TestBuildSnapshotRequiredSensors(t *testing.T) {
	base := func() port.SensorSet {
		return *singlePhase(10000, 2000, 10)
	}
	tests := []struct {
		name   string
		mutate func(s *port.SensorSet)
		entity string
	}{
		{"max import unavailable", func(s *port.SensorSet) { s.MaxImportPower = &fakeSensor{name: "sensor.max_import_power"} }, "sensor.max_import_power"},
		{"avg import not configured", func(s *port.SensorSet) { s.AvgImportPower15m = nil }, "avg_import_power_15m"},
		{"l1 current NaN", func(s *port.SensorSet) { s.PhaseCurrent[domain.PHASE_L1] = sensor("sensor.current_l1", math.NaN()) }, "sensor.current_l1"},
		{"l1 voltage Inf", func(s *port.SensorSet) { s.PhaseVoltage[domain.PHASE_L1] = sensor("sensor.voltage_l1", math.Inf(1)) }, "sensor.voltage_l1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sensors := base()
			tt.mutate(&sensors)
			s, err := BuildSnapshot(context.Background(), sensors, time.Now())
			assert.Nil(t, s)
			assert.ErrorIs(t, err, domain.ErrDataUnavailable)
			assert.Contains(t, err.Error(), tt.entity)
		})
	}
}

func TestBuildSnapshotOptionalSensorsDegrade(t *testing.T) {
	sensors := *singlePhase(10000, 2000, 10)
	sensors.PhaseCurrent[domain.PHASE_L2] = sensor("i2", math.NaN())
	sensors.PhaseVoltage[domain.PHASE_L2] = &fakeSensor{name: "v2"}
	sensors.ChargerCurrent[domain.PHASE_L1] = &fakeSensor{name: "c1"}

	s, err := BuildSnapshot(context.Background(), sensors, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.PhaseCurrentAmps[domain.PHASE_L2])
	assert.Equal(t, 0.0, s.PhaseVoltageVolts[domain.PHASE_L2])
	assert.True(t, s.HasChargerCurrent)
	assert.Equal(t, 0.0, ChargerPower(s))
}
