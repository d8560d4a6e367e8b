package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPeriodicTriggerFires(t *testing.T) {
	var count atomic.Int32
	trigger := NewPeriodicTrigger("tick", 50*time.Millisecond, func() {
		count.Add(1)
	}, zap.NewNop())

	assert.NoError(t, trigger.Start())
	assert.Eventually(t, func() bool { return count.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	trigger.Stop()
	stopped := count.Load()
	time.Sleep(200 * time.Millisecond)
	assert.LessOrEqual(t, count.Load(), stopped+1)
}

func TestPeriodicTriggerScheduleError(t *testing.T) {
	trigger := NewPeriodicTrigger("", time.Second, func() {}, zap.NewNop())

	assert.Error(t, trigger.Start())
	assert.Nil(t, trigger.scheduler)
	// nothing to stop
	trigger.Stop()
}

func TestPeriodicTriggerStopWithoutStart(t *testing.T) {
	trigger := NewPeriodicTrigger("tick", time.Second, func() {}, zap.NewNop())
	trigger.Stop()
	assert.Nil(t, trigger.scheduler)
}
