package service

import (
	"context"
	"math"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/core/port"
)

// BuildSnapshot reads every configured sensor once. A missing or non-numeric required
// sensor invalidates the whole snapshot, optional ones degrade to zero.
func BuildSnapshot(ctx context.Context, sensors port.SensorSet, now time.Time) (*domain.MeasurementSnapshot, error) {
	snapshot := &domain.MeasurementSnapshot{
		HasChargerCurrent: sensors.HasChargerCurrent(),
		Timestamp:         now,
	}

	var err error
	if snapshot.MaxImportPowerWatt, err = readRequired(ctx, sensors.MaxImportPower, "max_import_power"); err != nil {
		return nil, err
	}
	if snapshot.AvgImportPower15mWatt, err = readRequired(ctx, sensors.AvgImportPower15m, "avg_import_power_15m"); err != nil {
		return nil, err
	}
	if snapshot.PhaseCurrentAmps[domain.PHASE_L1], err = readRequired(ctx, sensors.PhaseCurrent[domain.PHASE_L1], "current_l1"); err != nil {
		return nil, err
	}
	if snapshot.PhaseVoltageVolts[domain.PHASE_L1], err = readRequired(ctx, sensors.PhaseVoltage[domain.PHASE_L1], "voltage_l1"); err != nil {
		return nil, err
	}

	for _, p := range []domain.Phase{domain.PHASE_L2, domain.PHASE_L3} {
		snapshot.PhaseCurrentAmps[p] = readOptional(ctx, sensors.PhaseCurrent[p])
		snapshot.PhaseVoltageVolts[p] = readOptional(ctx, sensors.PhaseVoltage[p])
	}
	if snapshot.HasChargerCurrent {
		for _, p := range domain.Phases {
			snapshot.ChargerCurrentAmps[p] = readOptional(ctx, sensors.ChargerCurrent[p])
		}
	}
	return snapshot, nil
}

func readRequired(ctx context.Context, sensor port.Sensor, param string) (float64, error) {
	if sensor == nil {
		return 0, domain.DataUnavailableError(param)
	}
	value, ok := read(ctx, sensor)
	if !ok {
		return 0, domain.DataUnavailableError(sensor.Name())
	}
	return value, nil
}

func readOptional(ctx context.Context, sensor port.Sensor) float64 {
	if sensor == nil {
		return 0
	}
	value, ok := read(ctx, sensor)
	if !ok {
		return 0
	}
	return value
}

func read(ctx context.Context, sensor port.Sensor) (float64, bool) {
	value, ok := sensor.Read(ctx)
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}
