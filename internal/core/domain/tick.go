package domain

import "time"

// TickResult is what one orchestrator tick observed, decided and applied.
type TickResult struct {
	Verdict Verdict
	// Verdict reason, or COMMAND_FAILED when applying the verdict failed
	Reason      Reason
	Snapshot    *MeasurementSnapshot
	SnapshotErr error

	TotalPowerWatt     float64
	HouseholdPowerWatt float64
	AvailablePowerWatt float64
	AvgPower30sWatt    float64
	HasAvgPower30s     bool

	ChargerState      ChargerState
	Commands          []ChargerCommand
	Flags             ControlFlags
	MaxCurrentCapAmps int
	Timestamp         time.Time
}

func (r TickResult) CommandFailed() bool {
	return r.Reason == REASON_COMMAND_FAILED
}

// ChargeControlStatus is the externally visible state of a controller.
type ChargeControlStatus struct {
	Flags             ControlFlags
	MaxCurrentCapAmps int
	ChargerState      ChargerState
	LastResult        *TickResult
}

// Succeeded reports whether the tick produced a trustworthy outcome: the snapshot could be
// built and every charger command went through.
func (r TickResult) Succeeded() bool {
	return r.SnapshotErr == nil && !r.CommandFailed()
}
