package port

import (
	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
)

type DecisionEngine interface {
	Decide(snapshot *domain.MeasurementSnapshot, settings domain.ControlSettings) domain.Verdict
}
