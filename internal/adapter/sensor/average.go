package sensor

import (
	"context"
	"math"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/core/port"
	"github.com/berfenger/evcharge2mqtt/internal/core/service"

	"github.com/benbjohnson/clock"
)

// AverageSensor samples its source on every read and reports the rolling average.
// It is available as long as one sample remains in the window.
type AverageSensor struct {
	source port.Sensor
	window *service.PowerWindow
	clock  clock.Clock
}

func NewAverageSensor(source port.Sensor, window time.Duration, clk clock.Clock) *AverageSensor {
	if clk == nil {
		clk = clock.New()
	}
	return &AverageSensor{
		source: source,
		window: service.NewPowerWindow(window),
		clock:  clk,
	}
}

func (s *AverageSensor) Name() string {
	return s.source.Name()
}

func (s *AverageSensor) Read(ctx context.Context) (float64, bool) {
	now := s.clock.Now()
	if value, ok := s.source.Read(ctx); ok && !math.IsNaN(value) && !math.IsInf(value, 0) {
		s.window.Add(value, now)
	}
	return s.window.Average(now)
}
