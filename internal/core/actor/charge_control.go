package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/adapter/scheduler"
	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/core/events"
	"github.com/berfenger/evcharge2mqtt/internal/core/service"
	"github.com/berfenger/evcharge2mqtt/internal/metrics"
	. "github.com/berfenger/evcharge2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type ChargeControlActor struct {
	ActorWithStates
	orchestrator *service.ChargeControlOrchestrator
	eventStream  *eventstream.EventStream
	trigger      *scheduler.PeriodicTrigger
	stash        *Stash
	// reports whether the sensor/charger connection is usable, nil means always
	ioHealthy   func() bool
	tickTimeout time.Duration

	logger *zap.Logger
}

type chargeControlTickDone struct {
	result   domain.TickResult
	err      error
	replyTo  *actor.PID
	duration time.Duration
	// completed after its tick had already been reported as timed out
	late bool
}

func NewChargeControlActor(orchestrator *service.ChargeControlOrchestrator, eventStream *eventstream.EventStream,
	ioHealthy func() bool, logger *zap.Logger) *ChargeControlActor {
	act := &ChargeControlActor{
		orchestrator: orchestrator,
		eventStream:  eventStream,
		ioHealthy:    ioHealthy,
		stash:        &Stash{},
		tickTimeout:  orchestrator.Settings().UpdateInterval,
		logger:       ActorLogger(domain.ACTOR_ID_CHARGE_CONTROL, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CCStartingState{
		actor: act,
	})
	return act
}

func (state *ChargeControlActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type CCStartingState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCStartingState) Name() string {
	return "starting"
}

func (state CCStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("charge_control@starting started")

		notify := SelfNotifier(ctx)
		state.actor.trigger = scheduler.NewPeriodicTrigger(domain.ACTOR_ID_CHARGE_CONTROL, state.actor.orchestrator.Settings().UpdateInterval,
			func() {
				notify(domain.ChargeControlTickRequest{})
			}, state.actor.logger)
		if err := state.actor.trigger.Start(); err != nil {
			state.actor.logger.Error("charge_control@starting could not start scheduler", zap.Error(err))
			panic(err)
		}

		state.actor.Become(CCIdleState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("charge_control@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Idle state

type CCIdleState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCIdleState) Name() string {
	return "idle"
}

func (state CCIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("charge_control@idle: ActorHealthRequest")
		state.actor.respondHealth(ctx)
	case domain.ChargeControlRequest:
		state.actor.handleRequest(ctx, msg)
	case *actor.Stopping:
		state.actor.stop()
	case *actor.Restarting:
		state.actor.stop()
	case chargeControlTickDone:
		state.actor.onLateTickDone(msg)
	default:
		state.actor.logger.Debug("charge_control@idle: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Ticking state. Only one tick runs at a time; requests are stashed until it completes.

type CCTickingState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCTickingState) Name() string {
	return "ticking"
}

func (state CCTickingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx)
	case domain.ChargeControlTickRequest:
		// a periodic tick while busy is dropped, the next one comes with the timer
		state.actor.logger.Debug("charge_control@ticking: skip periodic tick")
	case chargeControlTickDone:
		if msg.late {
			state.actor.onLateTickDone(msg)
			return
		}
		state.actor.onTickDone(ctx, msg)
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.actor.stop()
	case *actor.Restarting:
		state.actor.stop()
	default:
		state.actor.logger.Debug("charge_control@ticking: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

func (state CCTickingState) OnEnterAction(ctx actor.Context, replyTo *actor.PID) CCTickingState {
	orchestrator := state.actor.orchestrator
	timeout := state.actor.tickTimeout
	NewBackgroundTask(ctx, func() chargeControlTickDone {
		start := time.Now()
		tickCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		result := orchestrator.Tick(tickCtx)
		return chargeControlTickDone{
			result:   result,
			replyTo:  replyTo,
			duration: time.Since(start),
		}
	}).WithTimeout(timeout + time.Second).Recover(func(err error) chargeControlTickDone {
		return chargeControlTickDone{err: err, replyTo: replyTo}
	}).Late(func(done chargeControlTickDone) chargeControlTickDone {
		done.late = true
		done.replyTo = nil
		return done
	}).PipeTo(ctx.Self())
	return state
}

// Other actor function helpers

func (state *ChargeControlActor) handleRequest(ctx actor.Context, req domain.ChargeControlRequest) {
	switch cmd := req.(type) {
	case domain.ChargeControlTickRequest:
		state.logger.Debug("charge_control@idle: tick")
		state.startTick(ctx, nil)
	case domain.ChargeControlUpdateNowRequest:
		state.logger.Debug("charge_control@idle: update now")
		state.startTick(ctx, ForRequest(cmd).ReplyTo(ctx))
	case domain.ChargeControlSetManualOverrideRequest:
		state.logger.Sugar().Infof("charge_control@idle: cmd manual override %t", cmd.Enable)
		state.orchestrator.SetManualOverride(cmd.Enable)
		state.publish(events.ManualOverrideSwitchUpdateEvent(cmd.Enable))
		if !cmd.Enable {
			state.startTick(ctx, nil)
		}
	case domain.ChargeControlSetChargerEnabledRequest:
		state.logger.Sugar().Infof("charge_control@idle: cmd charger enabled %t", cmd.Enable)
		state.orchestrator.SetChargerEnabled(cmd.Enable)
		state.publish(events.ChargerEnabledSwitchUpdateEvent(cmd.Enable))
		if cmd.Enable {
			state.startTick(ctx, nil)
		}
	case domain.ChargeControlSetMaxCurrentCapRequest:
		state.logger.Sugar().Infof("charge_control@idle: cmd max current cap %d", cmd.CapAmps)
		if err := state.orchestrator.SetMaxCurrentCap(cmd.CapAmps); err != nil {
			state.logger.Warn("charge_control@idle: rejected max current cap", zap.Error(err))
			// restore the entity to the current value
			state.publish(events.MaxCurrentCapUpdateEvents(state.orchestrator.Settings().MaxCurrentCapAmps)...)
			return
		}
		state.publish(events.MaxCurrentCapUpdateEvents(cmd.CapAmps)...)
		state.startTick(ctx, nil)
	case domain.ChargeControlGetStatusRequest:
		ForRequest(cmd).Respond(ctx, domain.ChargeControlGetStatusResponse{
			Status: state.orchestrator.Status(),
		})
	case domain.ChargeControlPublishStatusRequest:
		state.logger.Debug("charge_control@idle: publish status")
		state.publish(events.StatusUpdateEvents(state.orchestrator.Status())...)
	default:
		state.logger.Debug("charge_control@idle: unhandled request", zap.String("type", fmt.Sprintf("%T", req)))
	}
}

func (state *ChargeControlActor) startTick(ctx actor.Context, replyTo *actor.PID) {
	state.BecomeStacked(CCTickingState{
		actor: state,
	}.OnEnterAction(ctx, replyTo))
}

func (state *ChargeControlActor) onTickDone(ctx actor.Context, msg chargeControlTickDone) {
	if msg.err != nil {
		state.logger.Error("charge_control@ticking: tick did not complete", zap.Error(msg.err))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, domain.ChargeControlUpdateNowResponse{
				ActorResponseMixIn: domain.ErrorResponse(msg.err),
			})
		}
		return
	}
	metrics.ObserveTick(&msg.result, msg.duration)
	state.publish(events.TickResultToUpdateEvents(&msg.result)...)
	if msg.replyTo != nil {
		ctx.Send(msg.replyTo, domain.ChargeControlUpdateNowResponse{
			Result: msg.result,
		})
	}
}

// onLateTickDone records a tick that finished after its timeout. Its commands did
// reach the charger, so the published entities must reflect them.
func (state *ChargeControlActor) onLateTickDone(msg chargeControlTickDone) {
	state.logger.Warn("charge_control: late tick result", zap.String("reason", string(msg.result.Reason)),
		zap.Duration("duration", msg.duration))
	metrics.ObserveTick(&msg.result, msg.duration)
	state.publish(events.TickResultToUpdateEvents(&msg.result)...)
}

func (state *ChargeControlActor) respondHealth(ctx actor.Context) {
	healthy := state.ioHealthy == nil || state.ioHealthy()
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_CHARGE_CONTROL,
		Healthy: healthy,
		State:   state.StateName(),
	})
}

func (state *ChargeControlActor) publish(evs ...any) {
	for _, ev := range evs {
		state.eventStream.Publish(ev)
	}
}

func (state *ChargeControlActor) stop() {
	if state.trigger != nil {
		state.trigger.Stop()
		state.trigger = nil
	}
}
