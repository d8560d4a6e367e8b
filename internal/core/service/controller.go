package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/core/port"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// ChargerController applies verdicts to the charger. It only sends commands when the
// desired state differs from the last successfully applied one.
type ChargerController struct {
	chargerSwitch port.ChargerSwitch
	currentSelect port.ChargerCurrentSelect
	clock         clock.Clock
	state         domain.ChargerState
	// a switch-on was sent but the step did not complete, the charger may be running
	pendingOn bool
	logger    *zap.Logger
}

type ApplyResult struct {
	Commands []domain.ChargerCommand
	// true when manual override or disabled control prevented any action
	Skipped bool
	Err     error
}

func (r ApplyResult) Failed() bool {
	return r.Err != nil
}

// NewChargerController creates a controller in the Off state. Either capability may be nil.
func NewChargerController(chargerSwitch port.ChargerSwitch, currentSelect port.ChargerCurrentSelect,
	clk clock.Clock, logger *zap.Logger) *ChargerController {
	if clk == nil {
		clk = clock.New()
	}
	return &ChargerController{
		chargerSwitch: chargerSwitch,
		currentSelect: currentSelect,
		clock:         clk,
		logger:        logger,
	}
}

func (c *ChargerController) State() domain.ChargerState {
	return c.state
}

func (c *ChargerController) Apply(ctx context.Context, verdict domain.Verdict, flags domain.ControlFlags) ApplyResult {
	// the user is in control, leave state and charger untouched
	if !flags.AutomaticControl() {
		return ApplyResult{Skipped: true}
	}

	if !verdict.Allowed {
		if !c.state.Charging && !c.pendingOn {
			return ApplyResult{}
		}
		cmds, err := c.run(ctx, domain.ChargerCommand{Kind: domain.CHARGER_COMMAND_SWITCH_OFF})
		if err == nil {
			c.logger.Info("charger switched off", zap.String("reason", string(verdict.Reason)))
			c.commit(domain.ChargerState{Charging: false})
		}
		return ApplyResult{Commands: cmds, Err: err}
	}

	if c.state.Charging && c.state.CurrentAmps == verdict.CurrentAmps {
		return ApplyResult{}
	}

	var steps []domain.ChargerCommand
	if !c.state.Charging {
		steps = append(steps, domain.ChargerCommand{Kind: domain.CHARGER_COMMAND_SWITCH_ON})
	}
	steps = append(steps, domain.ChargerCommand{Kind: domain.CHARGER_COMMAND_SET_CURRENT, CurrentAmps: verdict.CurrentAmps})

	cmds, err := c.run(ctx, steps...)
	if err != nil {
		if slices.ContainsFunc(cmds, func(cmd domain.ChargerCommand) bool {
			return cmd.Kind == domain.CHARGER_COMMAND_SWITCH_ON
		}) {
			c.pendingOn = true
		}
	} else {
		c.logger.Info("charger current applied", zap.String("from", c.state.String()), zap.Int("current", verdict.CurrentAmps))
		c.commit(domain.ChargerState{Charging: true, CurrentAmps: verdict.CurrentAmps})
	}
	return ApplyResult{Commands: cmds, Err: err}
}

// run issues commands in order and stops at the first failure.
func (c *ChargerController) run(ctx context.Context, cmds ...domain.ChargerCommand) ([]domain.ChargerCommand, error) {
	var issued []domain.ChargerCommand
	for _, cmd := range cmds {
		var err error
		switch cmd.Kind {
		case domain.CHARGER_COMMAND_SWITCH_ON, domain.CHARGER_COMMAND_SWITCH_OFF:
			if c.chargerSwitch == nil {
				continue
			}
			err = c.chargerSwitch.SetSwitch(ctx, cmd.Kind == domain.CHARGER_COMMAND_SWITCH_ON)
		case domain.CHARGER_COMMAND_SET_CURRENT:
			if c.currentSelect == nil {
				continue
			}
			err = c.currentSelect.SetOption(ctx, cmd.Option())
		}
		if err != nil {
			cmd.Err = fmt.Errorf("%w: %s: %w", domain.ErrCommandFailed, cmd.Kind, err)
			issued = append(issued, cmd)
			c.logger.Warn("charger command failed", zap.String("command", string(cmd.Kind)), zap.Error(err))
			return issued, cmd.Err
		}
		issued = append(issued, cmd)
	}
	return issued, nil
}

func (c *ChargerController) commit(state domain.ChargerState) {
	state.LastTick = c.clock.Now()
	c.state = state
	c.pendingOn = false
}
