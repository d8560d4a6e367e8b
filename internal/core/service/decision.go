package service

import (
	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/core/port"

	"go.uber.org/zap"
)

type DefaultDecisionEngine struct {
	Logger *zap.Logger
}

// Decide turns a snapshot into a verdict. The first failing check blocks charging.
// A nil snapshot means it could not be assembled.
func (e *DefaultDecisionEngine) Decide(snapshot *domain.MeasurementSnapshot, settings domain.ControlSettings) domain.Verdict {
	if snapshot == nil {
		return domain.Deny(domain.REASON_DATA_UNAVAILABLE)
	}

	// sustained average violation is penalized even when instantaneous headroom exists
	if snapshot.AvgImportPower15mWatt >= snapshot.MaxImportPowerWatt {
		e.debug("decision: 15m average import above limit",
			zap.Float64("avg", snapshot.AvgImportPower15mWatt), zap.Float64("max", snapshot.MaxImportPowerWatt))
		return domain.Deny(domain.REASON_AVERAGE_LIMIT_EXCEEDED)
	}

	availablePower := AvailablePower(snapshot)
	availableCurrent, err := PowerToCurrent(availablePower, snapshot)
	if err != nil {
		e.debug("decision: cannot compute available current", zap.Error(err))
		return domain.Deny(domain.REASON_DATA_UNAVAILABLE)
	}

	minCurrent := MinViableCurrent(settings)
	if availableCurrent < float64(minCurrent) {
		e.debug("decision: available current below minimum",
			zap.Float64("available_current", availableCurrent), zap.Int("min", minCurrent))
		return domain.Deny(domain.REASON_INSUFFICIENT_POWER)
	}

	if settings.MaxCurrentCapAmps < minCurrent {
		return domain.Deny(domain.REASON_INSUFFICIENT_POWER)
	}

	target := availableCurrent
	if float64(settings.MaxCurrentCapAmps) < target {
		target = float64(settings.MaxCurrentCapAmps)
	}
	step, ok := QuantizeCurrent(target, minCurrent, settings.CurrentSteps)
	if !ok {
		return domain.Deny(domain.REASON_INSUFFICIENT_POWER)
	}

	e.debug("decision: charging allowed",
		zap.Float64("available_power", availablePower), zap.Float64("available_current", availableCurrent), zap.Int("current", step))
	return domain.Allow(step)
}

// QuantizeCurrent returns the greatest step <= target. Steps below minCurrent are never chosen.
func QuantizeCurrent(target float64, minCurrent int, steps []int) (int, bool) {
	found := false
	best := 0
	for _, step := range steps {
		if step < minCurrent || float64(step) > target {
			continue
		}
		if !found || step > best {
			best = step
			found = true
		}
	}
	return best, found
}

func (e *DefaultDecisionEngine) debug(msg string, fields ...zap.Field) {
	if e.Logger != nil {
		e.Logger.Debug(msg, fields...)
	}
}

// ensure interface compliance
var _ port.DecisionEngine = (*DefaultDecisionEngine)(nil)
