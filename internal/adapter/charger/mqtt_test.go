package charger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berfenger/evcharge2mqtt/internal/config"
	"github.com/berfenger/evcharge2mqtt/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	payload any
	retain  bool
}

type fakePublisher struct {
	messages []published
	err      error
	deadline time.Duration
}

func (p *fakePublisher) PublishSync(ctx context.Context, topic string, payload any, _ byte, retain bool) error {
	if dl, ok := ctx.Deadline(); ok {
		p.deadline = time.Until(dl)
	}
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{topic: topic, payload: payload, retain: retain})
	return nil
}

func TestChargerCommands(t *testing.T) {
	cfg := util.LoadTestConfig()
	pub := &fakePublisher{}
	sw, sel := NewFromConfig(cfg.Charger, pub, nil)
	require.NotNil(t, sw)
	require.NotNil(t, sel)

	ctx := context.Background()
	require.NoError(t, sw.SetSwitch(ctx, true))
	require.NoError(t, sel.SetOption(ctx, "16"))
	require.NoError(t, sw.SetSwitch(ctx, false))

	assert.Equal(t, []published{
		{topic: "wallbox/switch/set", payload: "ON"},
		{topic: "wallbox/current/set", payload: "16"},
		{topic: "wallbox/switch/set", payload: "OFF"},
	}, pub.messages)
	assert.LessOrEqual(t, pub.deadline, 2*time.Second)
	assert.Greater(t, pub.deadline, time.Duration(0))
}

func TestChargerCommandFailure(t *testing.T) {
	cfg := util.LoadTestConfig()
	pub := &fakePublisher{err: errors.New("MQTT operation timed out")}
	sw, _ := NewFromConfig(cfg.Charger, pub, nil)
	assert.Error(t, sw.SetSwitch(context.Background(), true))
}

func TestChargerMissingCapabilities(t *testing.T) {
	pub := &fakePublisher{}
	sw, sel := NewFromConfig(config.ChargerConfig{
		Switch: config.ChargerSwitchConfig{CommandTopic: "wallbox/switch/set"},
	}, pub, nil)
	assert.Nil(t, sel)
	require.NotNil(t, sw)

	require.NoError(t, sw.SetSwitch(context.Background(), true))
	assert.Equal(t, "on", pub.messages[0].payload)
	assert.Less(t, pub.deadline, DEFAULT_COMMAND_TIMEOUT+time.Millisecond)
}
