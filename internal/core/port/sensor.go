package port

import (
	"context"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
)

// Sensor is any source of a single numeric measurement.
// available is false when the value is missing, stale or non-numeric.
type Sensor interface {
	Read(ctx context.Context) (value float64, available bool)
	Name() string
}

// SensorSet holds the sensors a snapshot is built from. Optional sensors may be nil.
type SensorSet struct {
	MaxImportPower    Sensor
	AvgImportPower15m Sensor
	PhaseCurrent      [domain.PHASE_COUNT]Sensor
	PhaseVoltage      [domain.PHASE_COUNT]Sensor
	ChargerCurrent    [domain.PHASE_COUNT]Sensor
}

func (s SensorSet) HasChargerCurrent() bool {
	for _, sensor := range s.ChargerCurrent {
		if sensor != nil {
			return true
		}
	}
	return false
}
