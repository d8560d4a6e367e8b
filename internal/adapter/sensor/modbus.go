package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/berfenger/evcharge2mqtt/pkg/sunspec_modbus"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	MODBUS_FIELD_CURRENT_L1   = "current_l1"
	MODBUS_FIELD_CURRENT_L2   = "current_l2"
	MODBUS_FIELD_CURRENT_L3   = "current_l3"
	MODBUS_FIELD_VOLTAGE_L1   = "voltage_l1"
	MODBUS_FIELD_VOLTAGE_L2   = "voltage_l2"
	MODBUS_FIELD_VOLTAGE_L3   = "voltage_l3"
	MODBUS_FIELD_POWER        = "power"
	MODBUS_FIELD_IMPORT_POWER = "import_power"
)

var modbusFields = map[string]func(*sunspec_modbus.ACMeterPhases) float64{
	MODBUS_FIELD_CURRENT_L1:   func(p *sunspec_modbus.ACMeterPhases) float64 { return p.CurrentAmps[0] },
	MODBUS_FIELD_CURRENT_L2:   func(p *sunspec_modbus.ACMeterPhases) float64 { return p.CurrentAmps[1] },
	MODBUS_FIELD_CURRENT_L3:   func(p *sunspec_modbus.ACMeterPhases) float64 { return p.CurrentAmps[2] },
	MODBUS_FIELD_VOLTAGE_L1:   func(p *sunspec_modbus.ACMeterPhases) float64 { return p.VoltageVolts[0] },
	MODBUS_FIELD_VOLTAGE_L2:   func(p *sunspec_modbus.ACMeterPhases) float64 { return p.VoltageVolts[1] },
	MODBUS_FIELD_VOLTAGE_L3:   func(p *sunspec_modbus.ACMeterPhases) float64 { return p.VoltageVolts[2] },
	MODBUS_FIELD_POWER:        func(p *sunspec_modbus.ACMeterPhases) float64 { return p.PowerWatt },
	MODBUS_FIELD_IMPORT_POWER: func(p *sunspec_modbus.ACMeterPhases) float64 { return p.ImportPowerWatt() },
}

func IsModbusField(field string) bool {
	_, ok := modbusFields[field]
	return ok
}

// ModbusMeter shares one meter reading between all the sensors of a tick.
// A reading is reused for maxAge, and the connection is reopened after a failure.
type ModbusMeter struct {
	reader   sunspec_modbus.ACMeterModbusReader
	maxAge   time.Duration
	clock    clock.Clock
	logger   *zap.Logger
	open     bool
	last     *sunspec_modbus.ACMeterPhases
	lastErr  error
	lastRead time.Time
	lock     sync.Mutex
}

func NewModbusMeter(reader sunspec_modbus.ACMeterModbusReader, maxAge time.Duration, clk clock.Clock, logger *zap.Logger) *ModbusMeter {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModbusMeter{
		reader: reader,
		maxAge: maxAge,
		clock:  clk,
		logger: logger,
	}
}

func (m *ModbusMeter) Phases() (*sunspec_modbus.ACMeterPhases, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.clock.Now()
	if !m.lastRead.IsZero() && now.Sub(m.lastRead) < m.maxAge {
		return m.last, m.lastErr
	}
	m.last, m.lastErr = m.read()
	m.lastRead = now
	return m.last, m.lastErr
}

func (m *ModbusMeter) read() (*sunspec_modbus.ACMeterPhases, error) {
	if !m.open {
		if err := m.connect(); err != nil {
			m.logger.Warn("modbus meter open failed", zap.Error(err))
			return nil, fmt.Errorf("modbus meter open: %w", err)
		}
		m.open = true
	}
	phases, err := m.reader.GetPhases()
	if err != nil {
		m.logger.Warn("modbus meter read failed", zap.Error(err))
		m.open = false
		_ = m.reader.Close()
		return nil, err
	}
	return phases, nil
}

func (m *ModbusMeter) connect() error {
	if err := m.reader.Open(); err != nil {
		return err
	}
	if err := m.reader.Validate(); err != nil {
		_ = m.reader.Close()
		return err
	}
	if info, err := m.reader.GetInfo(); err == nil {
		m.logger.Info("modbus meter connected",
			zap.String("manufacturer", info.Manufacturer),
			zap.String("model", info.Model),
			zap.String("version", info.Version),
			zap.Uint16("sunspec_model", info.SunSpecModel))
	}
	return nil
}

func (m *ModbusMeter) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if !m.open {
		return nil
	}
	m.open = false
	return m.reader.Close()
}

type ModbusSensor struct {
	meter *ModbusMeter
	field string
	get   func(*sunspec_modbus.ACMeterPhases) float64
}

func NewModbusSensor(meter *ModbusMeter, field string) (*ModbusSensor, error) {
	get, ok := modbusFields[field]
	if !ok {
		return nil, fmt.Errorf("unknown modbus field %q", field)
	}
	return &ModbusSensor{meter: meter, field: field, get: get}, nil
}

func (s *ModbusSensor) Name() string {
	return "modbus:" + s.field
}

func (s *ModbusSensor) Read(_ context.Context) (float64, bool) {
	phases, err := s.meter.Phases()
	if err != nil {
		return 0, false
	}
	return s.get(phases), true
}
