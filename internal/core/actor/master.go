package actor

import (
	"fmt"
	"slices"
	"strings"
	"time"

	adactor "github.com/berfenger/evcharge2mqtt/internal/adapter/actor"
	"github.com/berfenger/evcharge2mqtt/internal/config"
	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	. "github.com/berfenger/evcharge2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type ChargeControlActorProvider func(*eventstream.EventStream) *ChargeControlActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck         healthCheckResult
	eventStream                *eventstream.EventStream
	mqttActor                  *actor.PID
	chargeControlActor         *actor.PID
	mqttActorProvider          MQTTActorProvider
	chargeControlActorProvider ChargeControlActorProvider
	logger                     *zap.Logger
}

// healthCheckResult collects the answers of the monitored children to one health request.
type healthCheckResult struct {
	pending   map[string]bool
	unhealthy []string
	respondTo *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, mqttActorProvider MQTTActorProvider,
	chargeControlActorProvider ChargeControlActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:                     config,
		behavior:                   actor.NewBehavior(),
		stash:                      &Stash{},
		logger:                     ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:                &eventstream.EventStream{},
		mqttActorProvider:          mqttActorProvider,
		chargeControlActorProvider: chargeControlActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		// start ChargeControl child first, so entity updates are not lost
		chargeControlActorPID, err := state.startChargeControlActor(ctx)
		if err != nil {
			panic(err)
		}
		state.chargeControlActor = chargeControlActorPID

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck = newHealthCheck(ctx.Sender(), domain.ACTOR_ID_MQTT, domain.ACTOR_ID_CHARGE_CONTROL)
		for id, pid := range map[string]*actor.PID{
			domain.ACTOR_ID_MQTT:           state.mqttActor,
			domain.ACTOR_ID_CHARGE_CONTROL: state.chargeControlActor,
		} {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{Id: id, Healthy: false, State: err.Error()}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err != nil {
				state.logger.Warn("master@default invalid command", zap.Any("command", msg.Command), zap.Error(err))
				return
			}
			ctx.Send(state.chargeControlActor, cmd)
		}
	case adactor.MQTTSubscribed:
		// entities are (re)published on every MQTT (re)connection
		state.logger.Debug("master@default mqtt subscribed")
		ctx.Send(state.chargeControlActor, domain.ChargeControlPublishStatusRequest{})
	case domain.ChargeControlRequest:
		// requests from the HTTP api, the sender gets the response
		state.logger.Debug("master@default forward", zap.String("type", fmt.Sprintf("%T", msg)))
		ctx.Forward(state.chargeControlActor)
	case *actor.Terminated:
		state.logger.Warn("master@default child terminated", zap.String("who", msg.Who.Id))
	default:
		state.logger.Debug("master@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.SetReceiveTimeout(0)
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if state.currentHealthCheck.record(msg) {
			ctx.SetReceiveTimeout(0)
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) restartDecider(reason interface{}) actor.Directive {
	state.logger.Error("master: child failed, restarting", zap.Any("reason", reason))
	return actor.RestartDirective
}

func (state *MasterOfPuppetsActor) spawnChild(ctx actor.Context, id string, producer actor.Producer, supervisor actor.SupervisorStrategy) (*actor.PID, error) {
	return ctx.SpawnNamed(actor.PropsFromProducer(producer, actor.WithSupervisor(supervisor)), id)
}

func (state *MasterOfPuppetsActor) startChargeControlActor(ctx actor.Context) (*actor.PID, error) {
	return state.spawnChild(ctx, domain.ACTOR_ID_CHARGE_CONTROL, func() actor.Actor {
		return state.chargeControlActorProvider(state.eventStream)
	}, actor.NewOneForOneStrategy(10, 10*time.Second, state.restartDecider))
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {
	return state.spawnChild(ctx, domain.ACTOR_ID_HA_DISCOVERY, func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.logger)
	}, actor.NewOneForOneStrategy(1, 10*time.Second, state.restartDecider))
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {
	return state.spawnChild(ctx, domain.ACTOR_ID_MQTT, func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second))
}

func newHealthCheck(respondTo *actor.PID, children ...string) healthCheckResult {
	pending := make(map[string]bool, len(children))
	for _, id := range children {
		pending[id] = true
	}
	return healthCheckResult{pending: pending, respondTo: respondTo}
}

// record stores one answer and reports whether every child has answered.
func (state *healthCheckResult) record(resp domain.ActorHealthResponse) bool {
	if !state.pending[resp.Id] {
		return len(state.pending) == 0
	}
	delete(state.pending, resp.Id)
	if !resp.Healthy {
		state.unhealthy = append(state.unhealthy, resp.Id)
	}
	return len(state.pending) == 0
}

// respond answers the health request. Children that did not answer count as unhealthy.
func (state *healthCheckResult) respond(ctx actor.Context) {
	unhealthy := slices.Clone(state.unhealthy)
	for id := range state.pending {
		unhealthy = append(unhealthy, id)
	}
	slices.Sort(unhealthy)
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: len(unhealthy) == 0,
	}
	if len(unhealthy) > 0 {
		resp.State = "unhealthy: " + strings.Join(unhealthy, ",")
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
