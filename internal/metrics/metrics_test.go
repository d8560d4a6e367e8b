package metrics

import (
	"testing"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valueOf(t *testing.T, m prometheus.Metric) float64 {
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestObserveTick(t *testing.T) {
	Init()
	Init()

	before := valueOf(t, ticksTotal.WithLabelValues(string(domain.REASON_COMMAND_FAILED)))

	ObserveTick(&domain.TickResult{
		Verdict:  domain.Allow(16),
		Reason:   domain.REASON_COMMAND_FAILED,
		Snapshot: &domain.MeasurementSnapshot{},
		Commands: []domain.ChargerCommand{
			{Kind: domain.CHARGER_COMMAND_SWITCH_ON},
			{Kind: domain.CHARGER_COMMAND_SET_CURRENT, CurrentAmps: 16, Err: domain.ErrCommandFailed},
		},
		AvailablePowerWatt: 5400,
	}, 20*time.Millisecond)

	assert.Equal(t, before+1, valueOf(t, ticksTotal.WithLabelValues(string(domain.REASON_COMMAND_FAILED))))
	assert.Equal(t, 1.0, valueOf(t, commandsTotal.WithLabelValues("set_current", commandResultFailed)))
	assert.Equal(t, 16.0, valueOf(t, currentSetpoint))
	assert.Equal(t, 0.0, valueOf(t, appliedCurrent))
	assert.Equal(t, 1.0, valueOf(t, chargingAllowed))
	assert.Equal(t, 5400.0, valueOf(t, availablePower))
}
