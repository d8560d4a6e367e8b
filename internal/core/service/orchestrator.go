package service

import (
	"context"
	"sync"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/core/port"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const AVG_POWER_WINDOW = 30 * time.Second

// ChargeControlOrchestrator runs one control cycle at a time: read sensors, decide, apply.
type ChargeControlOrchestrator struct {
	sensors    port.SensorSet
	engine     port.DecisionEngine
	controller *ChargerController
	settings   domain.ControlSettings
	flags      domain.ControlFlags
	window     *PowerWindow
	clock      clock.Clock
	last       *domain.TickResult
	lock       sync.Mutex
	logger     *zap.Logger
}

type OrchestratorOptions struct {
	Sensors       port.SensorSet
	Engine        port.DecisionEngine
	Switch        port.ChargerSwitch
	CurrentSelect port.ChargerCurrentSelect
	Settings      domain.ControlSettings
	Flags         domain.ControlFlags
	Clock         clock.Clock
	Logger        *zap.Logger
}

func NewChargeControlOrchestrator(opts OrchestratorOptions) (*ChargeControlOrchestrator, error) {
	if err := domain.ValidateMaxCurrentCap(opts.Settings.MaxCurrentCapAmps); err != nil {
		return nil, err
	}
	if err := domain.ValidateUpdateInterval(opts.Settings.UpdateInterval); err != nil {
		return nil, err
	}
	if len(opts.Settings.CurrentSteps) == 0 {
		return nil, &domain.ConfigurationError{Param: "charger.current_select.options", Reason: "no current steps"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	engine := opts.Engine
	if engine == nil {
		engine = &DefaultDecisionEngine{Logger: logger}
	}
	return &ChargeControlOrchestrator{
		sensors:    opts.Sensors,
		engine:     engine,
		controller: NewChargerController(opts.Switch, opts.CurrentSelect, clk, logger),
		settings:   opts.Settings,
		flags:      opts.Flags,
		window:     NewPowerWindow(AVG_POWER_WINDOW),
		clock:      clk,
		logger:     logger,
	}, nil
}

// Tick runs one complete control cycle. Concurrent callers are serialized.
func (o *ChargeControlOrchestrator) Tick(ctx context.Context) domain.TickResult {
	o.lock.Lock()
	defer o.lock.Unlock()

	now := o.clock.Now()
	result := domain.TickResult{
		Flags:             o.flags,
		MaxCurrentCapAmps: o.settings.MaxCurrentCapAmps,
		Timestamp:         now,
	}

	snapshot, err := BuildSnapshot(ctx, o.sensors, now)
	if err != nil {
		o.logger.Warn("measurement snapshot unavailable", zap.Error(err))
		result.SnapshotErr = err
	} else {
		result.Snapshot = snapshot
		result.TotalPowerWatt = InstantaneousTotalPower(snapshot)
		result.HouseholdPowerWatt = HouseholdOnlyPower(snapshot)
		result.AvailablePowerWatt = AvailablePower(snapshot)
		o.window.Add(result.TotalPowerWatt, now)
	}
	result.AvgPower30sWatt, result.HasAvgPower30s = o.window.Average(now)

	result.Verdict = o.engine.Decide(snapshot, o.settings)
	result.Reason = result.Verdict.Reason

	applied := o.controller.Apply(ctx, result.Verdict, o.flags)
	result.Commands = applied.Commands
	if applied.Failed() {
		result.Reason = domain.REASON_COMMAND_FAILED
	}
	result.ChargerState = o.controller.State()

	o.logVerdict(result, applied)
	o.last = &result
	return result
}

func (o *ChargeControlOrchestrator) logVerdict(result domain.TickResult, applied ApplyResult) {
	fields := []zap.Field{
		zap.String("reason", string(result.Reason)),
		zap.Bool("allowed", result.Verdict.Allowed),
		zap.Int("current", result.Verdict.PublishedCurrent()),
		zap.String("charger", result.ChargerState.String()),
	}
	switch result.Reason {
	case domain.REASON_COMMAND_FAILED:
		o.logger.Warn("charge control tick", append(fields, zap.Error(applied.Err))...)
	case domain.REASON_DATA_UNAVAILABLE:
		o.logger.Warn("charge control tick", append(fields, zap.Error(result.SnapshotErr))...)
	case domain.REASON_OK:
		o.logger.Debug("charge control tick", fields...)
	default:
		o.logger.Info("charge control tick", fields...)
	}
}

func (o *ChargeControlOrchestrator) SetMaxCurrentCap(capAmps int) error {
	if err := domain.ValidateMaxCurrentCap(capAmps); err != nil {
		return err
	}
	o.lock.Lock()
	defer o.lock.Unlock()
	o.settings.MaxCurrentCapAmps = capAmps
	return nil
}

func (o *ChargeControlOrchestrator) SetManualOverride(enable bool) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.flags.ManualOverride = enable
}

func (o *ChargeControlOrchestrator) SetChargerEnabled(enable bool) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.flags.ChargerEnabled = enable
}

func (o *ChargeControlOrchestrator) Settings() domain.ControlSettings {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.settings
}

func (o *ChargeControlOrchestrator) Status() domain.ChargeControlStatus {
	o.lock.Lock()
	defer o.lock.Unlock()
	status := domain.ChargeControlStatus{
		Flags:             o.flags,
		MaxCurrentCapAmps: o.settings.MaxCurrentCapAmps,
		ChargerState:      o.controller.State(),
	}
	if o.last != nil {
		last := *o.last
		status.LastResult = &last
	}
	return status
}
