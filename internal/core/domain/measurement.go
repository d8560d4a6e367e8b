package domain

import "time"

type Phase int

const (
	PHASE_L1 Phase = iota
	PHASE_L2
	PHASE_L3
	PHASE_COUNT = 3
)

var Phases = [PHASE_COUNT]Phase{PHASE_L1, PHASE_L2, PHASE_L3}

func (p Phase) String() string {
	switch p {
	case PHASE_L1:
		return "L1"
	case PHASE_L2:
		return "L2"
	case PHASE_L3:
		return "L3"
	}
	return "unknown"
}

// MeasurementSnapshot is assembled once per tick from the configured sensors.
// Phases that are not reported hold zero current and zero voltage.
type MeasurementSnapshot struct {
	// Contractual import ceiling
	MaxImportPowerWatt float64
	// Import power averaged over the last 15 minutes
	AvgImportPower15mWatt float64
	PhaseCurrentAmps      [PHASE_COUNT]float64
	PhaseVoltageVolts     [PHASE_COUNT]float64
	// Charger draw per phase, only meaningful when HasChargerCurrent is set
	ChargerCurrentAmps [PHASE_COUNT]float64
	HasChargerCurrent  bool
	Timestamp          time.Time
}
