package service

import (
	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
)

// InstantaneousTotalPower is the household plus charger draw: sum of V*I over all phases.
func InstantaneousTotalPower(s *domain.MeasurementSnapshot) float64 {
	var total float64
	for _, p := range domain.Phases {
		total += s.PhaseVoltageVolts[p] * s.PhaseCurrentAmps[p]
	}
	return total
}

// ChargerPower is the charger's own draw, 0 when no charger current sensor is configured.
func ChargerPower(s *domain.MeasurementSnapshot) float64 {
	if !s.HasChargerCurrent {
		return 0
	}
	var total float64
	for _, p := range domain.Phases {
		total += s.ChargerCurrentAmps[p] * s.PhaseVoltageVolts[p]
	}
	return total
}

// HouseholdOnlyPower is the load the charger has to work around.
func HouseholdOnlyPower(s *domain.MeasurementSnapshot) float64 {
	return InstantaneousTotalPower(s) - ChargerPower(s)
}

// AvailablePower is the import headroom left for charging. Negative means over budget.
func AvailablePower(s *domain.MeasurementSnapshot) float64 {
	return s.MaxImportPowerWatt - HouseholdOnlyPower(s)
}

// MinViableCurrent is the lowest current a charger accepts. Less than that means no charging.
func MinViableCurrent(settings domain.ControlSettings) int {
	return settings.MinCurrentAmps
}

// ActivePhases counts phases reporting a non-zero voltage and averages their voltage.
func ActivePhases(s *domain.MeasurementSnapshot) (count int, avgVoltage float64) {
	var sum float64
	for _, p := range domain.Phases {
		if v := s.PhaseVoltageVolts[p]; v != 0 {
			count++
			sum += v
		}
	}
	if count == 0 {
		return 0, 0
	}
	return count, sum / float64(count)
}

// PowerToCurrent converts power to a per-phase current assuming a balanced load
// over the active phases.
func PowerToCurrent(powerWatt float64, s *domain.MeasurementSnapshot) (float64, error) {
	count, avgVoltage := ActivePhases(s)
	if count == 0 {
		return 0, domain.ErrCannotComputeCurrent
	}
	return powerWatt / (avgVoltage * float64(count)), nil
}
