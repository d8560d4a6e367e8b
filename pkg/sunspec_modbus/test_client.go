package sunspec_modbus

func CreateTestACMeterModbusReader() (ACMeterModbusReader, error) {
	return NewTestACMeterModbusReader(), nil
}

// TestACMeterModbusReader is an in-memory three-phase meter.
type TestACMeterModbusReader struct {
	Phases      ACMeterPhases
	Err         error
	ValidateErr error
	Reads       int
	Opens       int
}

func NewTestACMeterModbusReader() *TestACMeterModbusReader {
	return &TestACMeterModbusReader{
		Phases: ACMeterPhases{
			CurrentAmps:  [3]float64{8.5, 4.2, 1.1},
			VoltageVolts: [3]float64{231.2, 229.8, 230.4},
			PowerWatt:    3183.6,
		},
	}
}

func (reader *TestACMeterModbusReader) Open() error {
	reader.Opens++
	return nil
}

func (reader *TestACMeterModbusReader) Close() error {
	return nil
}

func (reader *TestACMeterModbusReader) Validate() error {
	return reader.ValidateErr
}

func (reader *TestACMeterModbusReader) GetInfo() (*ACMeterInfo, error) {
	return &ACMeterInfo{
		Manufacturer: "Fronius",
		Model:        "Smart Meter TS 65A-3",
		Version:      "1.3",
		SunSpecModel: 203,
	}, nil
}

func (reader *TestACMeterModbusReader) GetPhases() (*ACMeterPhases, error) {
	reader.Reads++
	if reader.Err != nil {
		return nil, reader.Err
	}
	phases := reader.Phases
	return &phases, nil
}
