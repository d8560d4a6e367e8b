package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/core/port"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestOrchestrator(t *testing.T, sensors *port.SensorSet, charger *recordingCharger) (*ChargeControlOrchestrator, *clock.Mock) {
	clk := clock.NewMock()
	o, err := NewChargeControlOrchestrator(OrchestratorOptions{
		Sensors:       *sensors,
		Switch:        charger,
		CurrentSelect: charger,
		Settings:      settingsWithSteps(evSteps...),
		Flags:         domain.ControlFlags{ChargerEnabled: true},
		Clock:         clk,
		Logger:        zap.NewNop(),
	})
	require.NoError(t, err)
	return o, clk
}

func TestOrchestratorRejectsInvalidSettings(t *testing.T) {
	settings := domain.DefaultControlSettings()
	settings.MaxCurrentCapAmps = 40
	_, err := NewChargeControlOrchestrator(OrchestratorOptions{Settings: settings})
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	settings = domain.DefaultControlSettings()
	settings.UpdateInterval = 2 * time.Second
	_, err = NewChargeControlOrchestrator(OrchestratorOptions{Settings: settings})
	assert.ErrorAs(t, err, &cfgErr)
}

func TestOrchestratorTick(t *testing.T) {
	charger := &recordingCharger{}
	o, clk := newTestOrchestrator(t, singlePhase(10000, 8000, 20), charger)

	r := o.Tick(context.Background())
	assert.True(t, r.Succeeded())
	assert.Equal(t, domain.Allow(16), r.Verdict)
	assert.Equal(t, domain.REASON_OK, r.Reason)
	assert.InDelta(t, 4600, r.TotalPowerWatt, 1e-9)
	assert.InDelta(t, 4600, r.HouseholdPowerWatt, 1e-9)
	assert.InDelta(t, 5400, r.AvailablePowerWatt, 1e-9)
	assert.True(t, r.HasAvgPower30s)
	assert.InDelta(t, 4600, r.AvgPower30sWatt, 1e-9)
	assert.Equal(t, clk.Now(), r.Timestamp)
	assert.Equal(t, []string{"on", "set:16"}, charger.calls)
	assert.Equal(t, domain.ChargerState{Charging: true, CurrentAmps: 16, LastTick: clk.Now()}, r.ChargerState)

	// identical conditions issue no further commands
	charger.reset()
	clk.Add(10 * time.Second)
	r = o.Tick(context.Background())
	assert.Empty(t, r.Commands)
	assert.Empty(t, charger.calls)

	status := o.Status()
	require.NotNil(t, status.LastResult)
	assert.Equal(t, r.Timestamp, status.LastResult.Timestamp)
}

func TestOrchestratorFailsClosedOnMissingData(t *testing.T) {
	charger := &recordingCharger{}
	sensors := singlePhase(10000, 2000, 10)
	o, _ := newTestOrchestrator(t, sensors, charger)

	o.Tick(context.Background())
	require.True(t, o.Status().ChargerState.Charging)

	sensors.PhaseVoltage[domain.PHASE_L1].(*fakeSensor).available = false
	charger.reset()
	r := o.Tick(context.Background())
	assert.False(t, r.Succeeded())
	assert.ErrorIs(t, r.SnapshotErr, domain.ErrDataUnavailable)
	assert.Equal(t, domain.Deny(domain.REASON_DATA_UNAVAILABLE), r.Verdict)
	assert.Equal(t, []string{"off"}, charger.calls)
	assert.False(t, r.ChargerState.Charging)
}

func TestOrchestratorCommandFailure(t *testing.T) {
	charger := &recordingCharger{failSwitch: true}
	o, _ := newTestOrchestrator(t, singlePhase(10000, 2000, 10), charger)

	r := o.Tick(context.Background())
	assert.True(t, r.Verdict.Allowed)
	assert.Equal(t, domain.REASON_COMMAND_FAILED, r.Reason)
	assert.True(t, r.CommandFailed())
	assert.False(t, r.Succeeded())
	assert.False(t, r.ChargerState.Charging)

	// retried on the next tick
	charger.failSwitch = false
	r = o.Tick(context.Background())
	assert.Equal(t, domain.REASON_OK, r.Reason)
	assert.True(t, r.ChargerState.Charging)
}

func TestOrchestratorLiveControls(t *testing.T) {
	charger := &recordingCharger{}
	o, _ := newTestOrchestrator(t, singlePhase(20000, 2000, 10), charger)
	ctx := context.Background()

	require.Error(t, o.SetMaxCurrentCap(5))
	require.Error(t, o.SetMaxCurrentCap(33))
	require.NoError(t, o.SetMaxCurrentCap(12))

	r := o.Tick(ctx)
	assert.Equal(t, domain.Allow(10), r.Verdict)
	assert.Equal(t, 12, r.MaxCurrentCapAmps)

	o.SetManualOverride(true)
	require.NoError(t, o.SetMaxCurrentCap(32))
	charger.reset()
	r = o.Tick(ctx)
	assert.Equal(t, domain.Allow(32), r.Verdict)
	assert.Empty(t, charger.calls)
	assert.Equal(t, 10, r.ChargerState.CurrentAmps)

	o.SetManualOverride(false)
	o.SetChargerEnabled(false)
	r = o.Tick(ctx)
	assert.Empty(t, charger.calls)
	assert.False(t, o.Status().Flags.ChargerEnabled)

	o.SetChargerEnabled(true)
	r = o.Tick(ctx)
	assert.Equal(t, []string{"set:32"}, charger.calls)
	assert.Equal(t, 32, r.ChargerState.CurrentAmps)
}

type blockingCharger struct {
	inFlight int
	maxSeen  int
	lock     sync.Mutex
}

func (c *blockingCharger) enter() {
	c.lock.Lock()
	c.inFlight++
	if c.inFlight > c.maxSeen {
		c.maxSeen = c.inFlight
	}
	c.lock.Unlock()
	time.Sleep(2 * time.Millisecond)
	c.lock.Lock()
	c.inFlight--
	c.lock.Unlock()
}

func (c *blockingCharger) SetSwitch(ctx context.Context, on bool) error {
	c.enter()
	return nil
}

func (c *blockingCharger) SetOption(ctx context.Context, option string) error {
	c.enter()
	return nil
}

func TestOrchestratorSingleTickAtATime(t *testing.T) {
	sensors := singlePhase(20000, 2000, 10)
	charger := &blockingCharger{}
	o, err := NewChargeControlOrchestrator(OrchestratorOptions{
		Sensors:       *sensors,
		Switch:        charger,
		CurrentSelect: charger,
		Settings:      settingsWithSteps(evSteps...),
		Flags:         domain.ControlFlags{ChargerEnabled: true},
		Logger:        zap.NewNop(),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(cap int) {
			defer wg.Done()
			_ = o.SetMaxCurrentCap(cap)
			o.Tick(context.Background())
		}(6 + i*3)
	}
	wg.Wait()
	assert.Equal(t, 1, charger.maxSeen)
}
