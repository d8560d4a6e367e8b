package domain

import (
	"fmt"
	"strconv"
	"time"
)

// ChargerState is either Off or Charging(CurrentAmps).
type ChargerState struct {
	Charging    bool
	CurrentAmps int
	LastTick    time.Time
}

func (s ChargerState) String() string {
	if !s.Charging {
		return "off"
	}
	return fmt.Sprintf("charging(%dA)", s.CurrentAmps)
}

type ChargerCommandKind string

const (
	CHARGER_COMMAND_SWITCH_ON   ChargerCommandKind = "switch_on"
	CHARGER_COMMAND_SWITCH_OFF  ChargerCommandKind = "switch_off"
	CHARGER_COMMAND_SET_CURRENT ChargerCommandKind = "set_current"
)

type ChargerCommand struct {
	Kind        ChargerCommandKind
	CurrentAmps int
	Err         error
}

func (c ChargerCommand) Option() string {
	return strconv.Itoa(c.CurrentAmps)
}

func (c ChargerCommand) Failed() bool {
	return c.Err != nil
}
