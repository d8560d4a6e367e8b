package actor

import (
	"fmt"
	"testing"
	"time"

	adactor "github.com/berfenger/evcharge2mqtt/internal/adapter/actor"
	"github.com/berfenger/evcharge2mqtt/internal/core/domain"
	"github.com/berfenger/evcharge2mqtt/internal/mqtt"
	"github.com/berfenger/evcharge2mqtt/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.MQTT.HADiscoveryEnable = true
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	charger := &testCharger{}
	orchestrator := newTestOrchestrator(t, testSensors(), charger)
	recorder := &adactor.PublishRecorder{}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, recorder, logger)
		}, func(es *eventstream.EventStream) *ChargeControlActor {
			return NewChargeControlActor(orchestrator, es, nil, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	require.NoError(t, err)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	require.NoError(t, err)
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.True(t, healthResp.Healthy, "healthy is true")

	// status is published once mqtt is subscribed
	assert.Eventually(t, func() bool {
		return hasEvent(recorder, domain.SWITCH_ID_CHARGER_ENABLED)
	}, 2*time.Second, 10*time.Millisecond)

	// discovery
	assert.Eventually(t, func() bool {
		return len(recorder.Discovery()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, recorder.Discovery()[0].Buttons, 1)

	// HTTP style request forwarded to the charge control actor
	res, err = context.RequestFuture(pid, domain.ChargeControlUpdateNowRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	update, ok := res.(domain.ChargeControlUpdateNowResponse)
	require.True(t, ok)
	assert.True(t, update.Result.Succeeded())
	assert.Equal(t, []string{"on", "set:16"}, charger.Calls())

	// MQTT command routed to the charge control actor
	context.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: domain.SWITCH_ID_CHARGER_ENABLED,
		Command:  "switch",
		Payload:  "off",
	}})
	assert.Eventually(t, func() bool {
		res, err := context.RequestFuture(pid, domain.ChargeControlGetStatusRequest{}, time.Second).Result()
		if err != nil {
			return false
		}
		return !res.(domain.ChargeControlGetStatusResponse).Status.Flags.ChargerEnabled
	}, 2*time.Second, 20*time.Millisecond)

	context.Stop(pid)

	as.Shutdown()
}

func TestDiscoveryRequest(t *testing.T) {
	req := DiscoveryRequest("evcharge")
	require.NotEmpty(t, req.Sensors)
	assert.Equal(t, domain.SENSOR_ID_BRIDGE_STATE, req.Sensors[0].Id)
	assert.Len(t, req.Switches, 2)
	assert.Len(t, req.InputNumbers, 1)
	assert.Len(t, req.Buttons, 1)

	bridge := domain.BridgeDevice("evcharge")
	for _, s := range req.Sensors[1:] {
		assert.Equal(t, bridge.Id, s.Device.Id)
		assert.Empty(t, s.Device.Manufacturer, "only the first entity carries the full device")
	}
}

func hasEvent(recorder *adactor.PublishRecorder, id string) bool {
	for _, e := range recorder.Events() {
		if e.SensorId() == id {
			return true
		}
	}
	return false
}

func TestHealthCheckResultRecord(t *testing.T) {
	hc := newHealthCheck(nil, domain.ACTOR_ID_MQTT, domain.ACTOR_ID_CHARGE_CONTROL)

	assert.False(t, hc.record(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MQTT, Healthy: true}))
	// duplicated and unknown answers are ignored
	assert.False(t, hc.record(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MQTT, Healthy: false}))
	assert.False(t, hc.record(domain.ActorHealthResponse{Id: "other", Healthy: false}))
	assert.Empty(t, hc.unhealthy)

	assert.True(t, hc.record(domain.ActorHealthResponse{Id: domain.ACTOR_ID_CHARGE_CONTROL, Healthy: false}))
	assert.Equal(t, []string{domain.ACTOR_ID_CHARGE_CONTROL}, hc.unhealthy)
}
