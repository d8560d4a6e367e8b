package sensor

import (
	"context"
	"testing"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/config"
	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/util"
	"github.com/berfenger/evcharge2mqtt/pkg/sunspec_modbus"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequenceSensor struct {
	values []float64
	ok     []bool
	i      int
}

func (s *sequenceSensor) Name() string { return "sequence" }

func (s *sequenceSensor) Read(_ context.Context) (float64, bool) {
	v, ok := s.values[s.i], s.ok[s.i]
	s.i++
	return v, ok
}

func TestStaticSensor(t *testing.T) {
	sensor := NewStaticSensor("max_import_power", 5750)
	value, ok := sensor.Read(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 5750.0, value)
	assert.Equal(t, "max_import_power", sensor.Name())
}

func TestAverageSensor(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	source := &sequenceSensor{
		values: []float64{0, 1000, 3000, 0, 0},
		ok:     []bool{false, true, true, false, false},
	}
	sensor := NewAverageSensor(source, time.Minute, clk)

	_, ok := sensor.Read(ctx)
	assert.False(t, ok, "no samples yet")

	clk.Add(10 * time.Second)
	value, ok := sensor.Read(ctx)
	assert.True(t, ok)
	assert.Equal(t, 1000.0, value)

	clk.Add(10 * time.Second)
	value, ok = sensor.Read(ctx)
	assert.True(t, ok)
	assert.Equal(t, 2000.0, value)

	// source unavailable, previous samples still in window
	clk.Add(10 * time.Second)
	value, ok = sensor.Read(ctx)
	assert.True(t, ok)
	assert.Equal(t, 2000.0, value)

	clk.Add(time.Minute)
	_, ok = sensor.Read(ctx)
	assert.False(t, ok, "all samples expired")
}

func TestNewSensorSet(t *testing.T) {
	cfg := util.LoadTestConfig()
	cfg.Sensors.CurrentL2 = config.SensorRef{Source: config.SENSOR_SOURCE_MODBUS, ModbusField: MODBUS_FIELD_CURRENT_L2}
	cfg.Sensors.AvgImportPower15m.AverageSeconds = 900

	clk := clock.NewMock()
	cache := NewMQTTStateCache(clk, nil)
	meter := NewModbusMeter(sunspec_modbus.NewTestACMeterModbusReader(), time.Second, clk, nil)

	set, err := NewSensorSet(&cfg, Deps{Clock: clk, StateCache: cache, Meter: meter})
	require.NoError(t, err)

	require.NotNil(t, set.MaxImportPower)
	require.NotNil(t, set.AvgImportPower15m)
	require.NotNil(t, set.PhaseCurrent[domain.PHASE_L1])
	require.NotNil(t, set.PhaseCurrent[domain.PHASE_L2])
	assert.Nil(t, set.PhaseCurrent[domain.PHASE_L3])
	assert.Nil(t, set.PhaseVoltage[domain.PHASE_L2])
	assert.False(t, set.HasChargerCurrent())

	_, isAverage := set.AvgImportPower15m.(*AverageSensor)
	assert.True(t, isAverage)
	assert.Equal(t, "modbus:current_l2", set.PhaseCurrent[domain.PHASE_L2].Name())
	assert.Len(t, cache.Topics(), 3)

	value, ok := set.MaxImportPower.Read(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 10000.0, value)
}

func TestNewSensorSetErrors(t *testing.T) {
	cfg := util.LoadTestConfig()
	cfg.Sensors.CurrentL3 = config.SensorRef{Source: config.SENSOR_SOURCE_MODBUS, ModbusField: MODBUS_FIELD_CURRENT_L3}

	_, err := NewSensorSet(&cfg, Deps{StateCache: NewMQTTStateCache(nil, nil)})
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "sensors.current_l3", cfgErr.Param)

	meter := NewModbusMeter(sunspec_modbus.NewTestACMeterModbusReader(), time.Second, nil, nil)
	cfg.Sensors.CurrentL3.ModbusField = "frequency"
	_, err = NewSensorSet(&cfg, Deps{StateCache: NewMQTTStateCache(nil, nil), Meter: meter})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "sensors.current_l3.modbus_field", cfgErr.Param)
}
