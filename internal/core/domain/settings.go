package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	MIN_CURRENT_AMPS             = 6
	MAX_CURRENT_AMPS             = 32
	DEFAULT_MAX_CURRENT_CAP_AMPS = 32
	MIN_UPDATE_INTERVAL          = 5 * time.Second
	MAX_UPDATE_INTERVAL          = 60 * time.Second
	DEFAULT_UPDATE_INTERVAL      = 10 * time.Second
)

// ControlSettings is fixed for the lifetime of a controller, except for
// MaxCurrentCapAmps which can be changed live.
type ControlSettings struct {
	MinCurrentAmps    int
	MaxCurrentCapAmps int
	// Ascending current levels supported by the charger
	CurrentSteps   []int
	UpdateInterval time.Duration
}

type ControlFlags struct {
	ManualOverride bool
	ChargerEnabled bool
}

// AutomaticControl reports whether the controller may issue commands.
func (f ControlFlags) AutomaticControl() bool {
	return !f.ManualOverride && f.ChargerEnabled
}

func DefaultControlSettings() ControlSettings {
	return ControlSettings{
		MinCurrentAmps:    MIN_CURRENT_AMPS,
		MaxCurrentCapAmps: DEFAULT_MAX_CURRENT_CAP_AMPS,
		CurrentSteps:      ContiguousCurrentSteps(MIN_CURRENT_AMPS, MAX_CURRENT_AMPS),
		UpdateInterval:    DEFAULT_UPDATE_INTERVAL,
	}
}

func ContiguousCurrentSteps(from, to int) []int {
	var steps []int
	for i := from; i <= to; i++ {
		steps = append(steps, i)
	}
	return steps
}

// ParseCurrentSteps converts the option list of a charger current select into
// current steps. Options must be integers in strictly ascending order.
func ParseCurrentSteps(options []string) ([]int, error) {
	if len(options) == 0 {
		return nil, &ConfigurationError{Param: "charger.current_select.options", Reason: "no options defined"}
	}
	steps := make([]int, 0, len(options))
	for i, opt := range options {
		value, err := strconv.Atoi(strings.TrimSpace(opt))
		if err != nil {
			return nil, &ConfigurationError{
				Param:  "charger.current_select.options",
				Reason: fmt.Sprintf("option %q is not an integer", opt),
			}
		}
		if i > 0 && value <= steps[i-1] {
			return nil, &ConfigurationError{
				Param:  "charger.current_select.options",
				Reason: fmt.Sprintf("option %q is not in ascending order", opt),
			}
		}
		steps = append(steps, value)
	}
	return steps, nil
}

func ValidateMaxCurrentCap(capAmps int) error {
	if capAmps < MIN_CURRENT_AMPS || capAmps > MAX_CURRENT_AMPS {
		return &ConfigurationError{
			Param:  "charge_control.max_current_cap",
			Reason: fmt.Sprintf("%d is outside [%d,%d]", capAmps, MIN_CURRENT_AMPS, MAX_CURRENT_AMPS),
		}
	}
	return nil
}

func ValidateUpdateInterval(interval time.Duration) error {
	if interval < MIN_UPDATE_INTERVAL || interval > MAX_UPDATE_INTERVAL {
		return &ConfigurationError{
			Param:  "charge_control.update_interval_seconds",
			Reason: fmt.Sprintf("%s is outside [%s,%s]", interval, MIN_UPDATE_INTERVAL, MAX_UPDATE_INTERVAL),
		}
	}
	return nil
}
