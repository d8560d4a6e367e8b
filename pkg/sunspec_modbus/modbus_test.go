package sunspec_modbus

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	USE_MOCKED_READER = true
)

func TestMeter(t *testing.T) {

	reader := ACMeterReader()

	err := reader.Open()
	require.NoError(t, err)
	defer reader.Close()
	err = reader.Validate()
	require.NoError(t, err)

	info, err := reader.GetInfo()
	require.NoError(t, err)
	fmt.Printf("Meter info: %+v\n", info)

	phases, err := reader.GetPhases()
	require.NoError(t, err)
	fmt.Printf("Meter phases: %+v\n", phases)
}

func TestDecodeACMeterPhases(t *testing.T) {
	regs := make([]uint16, 21)
	regs[0] = 139                         // A
	regs[1] = 85                          // AphA
	regs[2] = 42                          // AphB
	regs[3] = sunspecInt16NotImplemented  // AphC
	regs[4] = uint16(0xFFFF)              // A_SF = -1
	regs[6] = 2312                        // PhVphA
	regs[7] = 2298                        // PhVphB
	regs[8] = sunspecUint16NotImplemented // PhVphC
	regs[13] = uint16(0xFFFF)             // V_SF = -1
	regs[16] = uint16(0xFFD8)             // W = -40
	regs[20] = 1                          // W_SF = 1

	phases := decodeACMeterPhases(regs)

	assert.InDelta(t, 8.5, phases.CurrentAmps[0], 1e-9)
	assert.InDelta(t, 4.2, phases.CurrentAmps[1], 1e-9)
	assert.Equal(t, 0.0, phases.CurrentAmps[2])
	assert.InDelta(t, 231.2, phases.VoltageVolts[0], 1e-9)
	assert.InDelta(t, 229.8, phases.VoltageVolts[1], 1e-9)
	assert.Equal(t, 0.0, phases.VoltageVolts[2])
	assert.InDelta(t, -400.0, phases.PowerWatt, 1e-9)
	assert.Equal(t, 0.0, phases.ImportPowerWatt())
}

func TestApplyScaleFactor(t *testing.T) {
	assert.InDelta(t, 23.1, applySF(231, 0xFFFF), 1e-9)
	assert.InDelta(t, 2310.0, applySF(231, 1), 1e-9)
	assert.InDelta(t, -12.5, applySFint16(-125, 0xFFFF), 1e-9)
	assert.InDelta(t, 5.5022, scale(550220, uint16(0xFFFB)), 1e-9)
}

// fakeRegisters is a sparse holding register space
type fakeRegisters map[uint16]uint16

func (f fakeRegisters) ReadRegisters(addr uint16, quantity uint16, _ modbus.RegType) ([]uint16, error) {
	out := make([]uint16, quantity)
	for i := range out {
		v, ok := f[addr+uint16(i)]
		if !ok {
			return nil, errors.New("illegal data address")
		}
		out[i] = v
	}
	return out, nil
}

func (f fakeRegisters) block(addr, id, length uint16) uint16 {
	f[addr] = id
	f[addr+1] = length
	return addr + length + 2
}

func sunspecDevice() fakeRegisters {
	regs := fakeRegisters{40000: sunspecMarker[0], 40001: sunspecMarker[1]}
	next := regs.block(40002, SUNSPEC_WK_COMMON, 65)
	next = regs.block(next, 203, 105)
	regs.block(next, SUNSPEC_END_BLOCK, 0)
	return regs
}

func TestSurveyBlocks(t *testing.T) {
	blocks, err := surveyBlocks(sunspecDevice())
	require.NoError(t, err)
	assert.Equal(t, uint16(40002), blocks.common)
	assert.Equal(t, uint16(40069), blocks.acMeter)
	assert.Equal(t, uint16(203), blocks.acMeterModel)
}

func TestSurveyBlocksErrors(t *testing.T) {
	notSunSpec := fakeRegisters{40000: 0, 40001: 0}
	_, err := surveyBlocks(notSunSpec)
	assert.ErrorIs(t, err, ErrNotSunSpec)

	// inverter only, no meter model in the chain
	inverterOnly := fakeRegisters{40000: sunspecMarker[0], 40001: sunspecMarker[1]}
	next := inverterOnly.block(40002, SUNSPEC_WK_COMMON, 65)
	next = inverterOnly.block(next, 103, 50)
	inverterOnly.block(next, SUNSPEC_END_BLOCK, 0)
	_, err = surveyBlocks(inverterOnly)
	assert.ErrorIs(t, err, ErrBlocksNotFound)

	// broken chain
	truncated := fakeRegisters{40000: sunspecMarker[0], 40001: sunspecMarker[1]}
	truncated.block(40002, SUNSPEC_WK_COMMON, 65)
	_, err = surveyBlocks(truncated)
	assert.Error(t, err)
}

func TestSurveyBlockKinds(t *testing.T) {
	assert.True(t, (&modbusBlock{id: 0xFFFF}).isEndBlock())
	assert.True(t, (&modbusBlock{id: 203}).isACMeter())
	assert.True(t, (&modbusBlock{id: 201}).isACMeter())
	assert.False(t, (&modbusBlock{id: 103}).isACMeter())
	assert.False(t, (&modbusBlock{id: SUNSPEC_WK_COMMON}).isACMeter())
}

func RealACMeterReader() ACMeterModbusReader {
	logger := zap.Must(zap.NewDevelopment())
	reader, err := CreateACMeterIntSFModbusReader("-.-.-.-", 502, 240, 1*time.Second, false, logger, nil)
	if err != nil {
		panic(err)
	}
	return reader
}

func MockedACMeterReader() ACMeterModbusReader {
	reader, err := CreateTestACMeterModbusReader()
	if err != nil {
		panic(err)
	}
	return reader
}

func ACMeterReader() ACMeterModbusReader {
	if USE_MOCKED_READER {
		return MockedACMeterReader()
	} else {
		return RealACMeterReader()
	}
}
