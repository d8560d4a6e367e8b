package events

import (
	. "github.com/berfenger/evcharge2mqtt/internal/core/domain"
)

// TickResultToUpdateEvents maps the outcome of a control tick to entity state updates.
func TickResultToUpdateEvents(r *TickResult) []any {
	events := []any{
		NewBinarySensorUpdate(SENSOR_ID_CHARGING_ALLOWED, r.Verdict.Allowed),
		// 0 when not allowed
		NewFloatSensorUpdate(SENSOR_ID_MAX_CHARGING_CURRENT, float64(r.Verdict.PublishedCurrent()), 0),
		NewTextSensorUpdate(SENSOR_ID_CHARGE_CONTROL_REASON, string(r.Reason)),
		AppliedCurrentUpdateEvent(r.ChargerState),
	}

	// Power figures are only published for a valid snapshot
	if r.Snapshot != nil {
		events = append(events,
			NewFloatSensorUpdate(SENSOR_ID_INSTANTANEOUS_POWER, r.TotalPowerWatt, 1),
			NewFloatSensorUpdate(SENSOR_ID_HOUSEHOLD_POWER, r.HouseholdPowerWatt, 1),
			NewFloatSensorUpdate(SENSOR_ID_AVAILABLE_POWER, r.AvailablePowerWatt, 1),
		)
	}
	if r.HasAvgPower30s {
		events = append(events, NewFloatSensorUpdate(SENSOR_ID_AVG_POWER_30S, r.AvgPower30sWatt, 1))
	}

	return events
}

func AppliedCurrentUpdateEvent(state ChargerState) any {
	var current float64
	if state.Charging {
		current = float64(state.CurrentAmps)
	}
	return NewFloatSensorUpdate(SENSOR_ID_APPLIED_CURRENT, current, 0)
}

func ChargeControlSwitchesUpdateEvents(flags ControlFlags) []any {
	return []any{
		ManualOverrideSwitchUpdateEvent(flags.ManualOverride),
		ChargerEnabledSwitchUpdateEvent(flags.ChargerEnabled),
	}
}

func ManualOverrideSwitchUpdateEvent(enabled bool) any {
	return NewSwitchUpdate(SWITCH_ID_MANUAL_OVERRIDE, enabled)
}

func ChargerEnabledSwitchUpdateEvent(enabled bool) any {
	return NewSwitchUpdate(SWITCH_ID_CHARGER_ENABLED, enabled)
}

func MaxCurrentCapUpdateEvents(capAmps int) []any {
	return []any{NewInputNumberUpdate(INPUT_NUMBER_ID_MAX_CURRENT_CAP, float64(capAmps), 0)}
}

// StatusUpdateEvents republishes every control entity, used after (re)connection.
func StatusUpdateEvents(status ChargeControlStatus) []any {
	var events []any
	events = append(events, ChargeControlSwitchesUpdateEvents(status.Flags)...)
	events = append(events, MaxCurrentCapUpdateEvents(status.MaxCurrentCapAmps)...)
	if status.LastResult != nil {
		events = append(events, TickResultToUpdateEvents(status.LastResult)...)
	} else {
		events = append(events, AppliedCurrentUpdateEvent(status.ChargerState))
	}
	return events
}
