package sunspec_modbus

import (
	"math"
	"slices"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type ModbusClient struct {
	client     *modbus.ModbusClient
	instrument []ModbusInstrument
}

// ModbusInstrument observes the latency of every Modbus request.
type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

// readString reads a NUL padded string of size bytes.
func (reader ModbusClient) readString(address uint16, size uint16) (string, error) {
	defer RecordTimer("ReadString", reader.instrument)()
	bytes, err := reader.client.ReadRawBytes(address, size, modbus.HOLDING_REGISTER)
	if err != nil {
		return "", err
	}
	if end := slices.Index(bytes, 0x00); end >= 0 {
		bytes = bytes[:end]
	}
	return string(bytes), nil
}

func (reader ModbusClient) readRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error) {
	defer RecordTimer("ReadRegisters", reader.instrument)()
	return reader.client.ReadRegisters(addr, quantity, regType)
}

// scale applies a SunSpec scale factor, a signed power of ten.
func scale(value float64, sf uint16) float64 {
	return value * math.Pow(10, float64(int16(sf)))
}

func applySF(number uint16, sf uint16) float64 {
	return scale(float64(number), sf)
}

func applySFint16(number int16, sf uint16) float64 {
	return scale(float64(number), sf)
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if len(instrument) == 0 {
		return func() {}
	}
	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func debugLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus read", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}
