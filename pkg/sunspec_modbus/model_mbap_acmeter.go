package sunspec_modbus

import "errors"

var ErrUnexpectedVendor = errors.New("unexpected smart meter vendor")

type ACMeterInfo struct {
	Manufacturer string
	Model        string
	Version      string
	Serial       string
	// 201 single phase, 202 split phase, 203 and 204 three phase
	SunSpecModel uint16
}

// ACMeterPhases is a per-phase reading. Phases the meter does not implement read as 0.
type ACMeterPhases struct {
	CurrentAmps  [3]float64
	VoltageVolts [3]float64
	// Total real power. Positive = import
	PowerWatt float64
}

func (p ACMeterPhases) ImportPowerWatt() float64 {
	if p.PowerWatt < 0 {
		return 0
	}
	return p.PowerWatt
}

type ACMeterModbusReader interface {
	Open() error
	Close() error
	Validate() error
	GetInfo() (*ACMeterInfo, error)
	GetPhases() (*ACMeterPhases, error)
}
