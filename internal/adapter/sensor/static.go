package sensor

import "context"

// StaticSensor always reports the same value.
type StaticSensor struct {
	name  string
	value float64
}

func NewStaticSensor(name string, value float64) *StaticSensor {
	return &StaticSensor{name: name, value: value}
}

func (s *StaticSensor) Name() string {
	return s.name
}

func (s *StaticSensor) Read(_ context.Context) (float64, bool) {
	return s.value, true
}
