package actor

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/config"
	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/mqtt"
	"github.com/berfenger/evcharge2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type MQTTActor struct {
	config       *config.Config
	behavior     actor.Behavior
	stash        *actorutil.Stash
	client       *mqtt.MQTTClient
	eventStream  *eventstream.EventStream
	subscription *eventstream.Subscription
	notify       func(any)
	logger       *zap.Logger
}

type MQTTConnected struct {
}

// MQTTSubscribed is also sent to the parent once commands can be received.
type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")
		state.notify = actorutil.SelfNotifier(ctx)

		// create MQTT client
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			state.notify(MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				state.notify(MQTTConnectionLost{Error: err})
			} else {
				state.notify(MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		// subscribe to MQTT command topic
		state.client.SubscribeToCommandTopic(func(c pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseMQTTCommand(m)
			if err == nil && cmd != nil {
				state.notify(ParsedCommand{Command: cmd})
			}
		}, func(err error) {
			if err != nil {
				state.notify(MQTTConnectionLost{Error: err})
			} else {
				state.notify(MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		// init completed, transition to default state
		state.logger.Debug("mqtt@starting subscribed")
		state.subscribeEvents(ctx)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
		if ctx.Parent() != nil {
			ctx.Send(ctx.Parent(), msg)
		}
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: state.client.IsConnected(),
			State:   "idle",
		})
	case ParsedCommand:
		// route command to parent
		state.logger.Debug("mqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.Any("message", msg))
		state.publishMessage(ctx, msg.Topic, msg.Payload, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishSensorUpdateRequest:
		// receive message from event bus and publish to MQTT if needed
		state.logger.Debug("mqtt@default PublishSensorUpdateRequest", zap.String("type", fmt.Sprintf("%T", msg.Event)))
		state.publishSensorValue(ctx, msg.Event, msg.Retain)
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishHADiscovery")
		err := state.PublishHomeAssistantDiscovery(ctx, msg)
		if err != nil {
			state.logger.Error("mqtt@default PublishHADiscovery error", zap.Error(err))
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
		})
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// subscribeEvents forwards every entity update published on the event stream to this actor.
func (state *MQTTActor) subscribeEvents(ctx actor.Context) {
	if state.eventStream == nil || state.subscription != nil {
		return
	}
	state.subscription = state.eventStream.Subscribe(func(value any) {
		if event, ok := value.(domain.SensorUpdateEvent); ok {
			state.notify(domain.PublishSensorUpdateRequest{Event: event})
		}
	})
}

func (state *MQTTActor) event2MQTTMessage(event any) *rawMessage {
	return eventToRawMessage(state.client, event)
}

func eventToRawMessage(client *mqtt.MQTTClient, event any) *rawMessage {
	ev, ok := event.(domain.SensorUpdateEvent)
	if !ok {
		return nil
	}
	msg := &rawMessage{message: ev.Payload()}
	switch ev.(type) {
	case domain.FloatSensorUpdateEvent, domain.TextSensorUpdateEvent:
		msg.topic = client.SensorStateTopic(ev.SensorId())
	case domain.BinarySensorUpdateEvent:
		msg.topic = client.BinarySensorStateTopic(ev.SensorId())
	case domain.SwitchSensorUpdateEvent:
		// switches and numbers are retained so Home Assistant restores them
		msg.topic = client.SwitchStateTopic(ev.SensorId())
		msg.retain = true
	case domain.InputNumberSensorUpdateEvent:
		msg.topic = client.InputNumberStateTopic(ev.SensorId())
		msg.retain = true
	default:
		return nil
	}
	return msg
}

func (state *MQTTActor) publishSensorValue(ctx actor.Context, event domain.SensorUpdateEvent, retain bool) {
	msg := state.event2MQTTMessage(event)
	if msg != nil {
		state.logger.Sugar().Debugf("mqtt@publish: sensor publish %s => %s", msg.topic, msg.message)
		state.client.Publish(msg.topic, msg.message, 1, msg.retain || retain, func(err error) {
			state.notify(publishResult{Error: err})
		}, 5*time.Second)
		state.behavior.BecomeStacked(state.EventPublishResultReceive)
	}
}

func (state *MQTTActor) publishMessage(ctx actor.Context, topic, payload string, retain bool, replyTo *actor.PID) {
	state.logger.Sugar().Debugf("mqtt@publish: message publish %s => %s", topic, payload)
	state.client.Publish(topic, payload, 1, retain, func(err error) {
		state.notify(publishResult{ReplyTo: replyTo, Error: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.MessagePublishResultReceive)
}

func (state *MQTTActor) MessagePublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	case MQTTConnectionLost:
		state.logger.Error("mqtt@publishing connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) EventPublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	case MQTTConnectionLost:
		state.logger.Error("mqtt@publishing connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) PublishHomeAssistantDiscovery(ctx actor.Context, req domain.PublishDiscoveryRequest) error {
	messages, err := discoveryMessages(state.client, req)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		state.client.Publish(msg.topic, msg.message, 0, true, func(error) {}, 1*time.Second)
	}
	return nil
}

func discoveryMessages(client *mqtt.MQTTClient, req domain.PublishDiscoveryRequest) ([]rawMessage, error) {
	var messages []rawMessage
	add := func(topic string, cfg mqtt.HADiscoveryConfig) error {
		payload, err := json.Marshal(cfg)
		if err != nil {
			return err
		}
		messages = append(messages, rawMessage{topic: topic, message: string(payload), retain: true})
		return nil
	}
	for i := range req.Sensors {
		if err := add(mqtt.HADiscoverySensorTopic(client, req.Sensors[i]), mqtt.GenericSensorToHADiscoveryMessage(client, req.Sensors[i])); err != nil {
			return nil, err
		}
	}
	for i := range req.Switches {
		if err := add(mqtt.HADiscoverySwitchTopic(client, req.Switches[i]), mqtt.GenericSwitchToHADiscoveryMessage(client, req.Switches[i])); err != nil {
			return nil, err
		}
	}
	for i := range req.InputNumbers {
		if err := add(mqtt.HADiscoveryInputNumberTopic(client, req.InputNumbers[i]), mqtt.GenericInputNumberToHADiscoveryMessage(client, req.InputNumbers[i])); err != nil {
			return nil, err
		}
	}
	for i := range req.Buttons {
		if err := add(mqtt.HADiscoveryButtonTopic(client, req.Buttons[i]), mqtt.GenericButtonToHADiscoveryMessage(client, req.Buttons[i])); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	if state.subscription != nil {
		state.eventStream.Unsubscribe(state.subscription)
		state.subscription = nil
	}
	if state.client != nil {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

// Dummy actor

// PublishRecorder collects what a test MQTT actor would have published.
type PublishRecorder struct {
	events    []domain.SensorUpdateEvent
	discovery []domain.PublishDiscoveryRequest
	lock      sync.Mutex
}

func (r *PublishRecorder) Events() []domain.SensorUpdateEvent {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]domain.SensorUpdateEvent(nil), r.events...)
}

func (r *PublishRecorder) Discovery() []domain.PublishDiscoveryRequest {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]domain.PublishDiscoveryRequest(nil), r.discovery...)
}

func (r *PublishRecorder) addEvent(e domain.SensorUpdateEvent) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, e)
}

func (r *PublishRecorder) addDiscovery(d domain.PublishDiscoveryRequest) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.discovery = append(r.discovery, d)
}

func NewTestMQTTActor(config *config.Config, eventStream *eventstream.EventStream, recorder *PublishRecorder, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger("mqtt", logger),
	}
	if recorder == nil {
		recorder = &PublishRecorder{}
	}
	act.behavior.Become(func(ctx actor.Context) {
		act.DummyReceive(ctx, recorder)
	})
	return act
}

func (state *MQTTActor) DummyReceive(ctx actor.Context, recorder *PublishRecorder) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.notify = actorutil.SelfNotifier(ctx)
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
		state.subscribeEvents(ctx)
		if ctx.Parent() != nil {
			ctx.Send(ctx.Parent(), MQTTSubscribed{})
		}
	case *actor.Stopping:
		if state.subscription != nil {
			state.eventStream.Unsubscribe(state.subscription)
			state.subscription = nil
		}
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishSensorUpdateRequest:
		recorder.addEvent(msg.Event)
		if msg.ReplyToRef != nil || ctx.Sender() != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishSensorUpdateResponse{})
		}
	case domain.PublishDiscoveryRequest:
		recorder.addDiscovery(msg)
		if msg.ReplyToRef != nil || ctx.Sender() != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{})
		}
	case domain.PublishMessageRequest:
		if msg.ReplyToRef != nil || ctx.Sender() != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishMessageResponse{})
		}
	case ParsedCommand:
		if ctx.Parent() != nil {
			ctx.Send(ctx.Parent(), msg)
		}
	}
}
