package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

// PeriodicTrigger fires a callback at a fixed interval using a quartz scheduler.
type PeriodicTrigger struct {
	name      string
	interval  time.Duration
	fire      func()
	scheduler quartz.Scheduler
	cancel    context.CancelFunc
	logger    *zap.Logger
}

type triggerJob struct {
	name   string
	fire   func()
	fired  atomic.Uint64
	logger *zap.Logger
}

func (j *triggerJob) Execute(_ context.Context) error {
	j.fired.Add(1)
	j.logger.Debug("scheduler: job fired", zap.String("job", j.name))
	j.fire()
	return nil
}

func (j *triggerJob) Description() string {
	return j.name
}

func NewPeriodicTrigger(name string, interval time.Duration, fire func(), logger *zap.Logger) *PeriodicTrigger {
	return &PeriodicTrigger{
		name:     name,
		interval: interval,
		fire:     fire,
		logger:   logger,
	}
}

func (t *PeriodicTrigger) Start() error {
	sched := quartz.NewStdScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	job := &triggerJob{name: t.name, fire: t.fire, logger: t.logger}
	err := sched.ScheduleJob(quartz.NewJobDetail(job, quartz.NewJobKey(t.name)), quartz.NewSimpleTrigger(t.interval))
	if err != nil {
		cancel()
		return err
	}
	t.scheduler = sched
	t.cancel = cancel
	t.logger.Debug("scheduler: started", zap.String("job", t.name), zap.Duration("interval", t.interval))
	return nil
}

func (t *PeriodicTrigger) Stop() {
	if t.scheduler == nil {
		return
	}
	t.scheduler.Stop()
	t.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	t.scheduler.Wait(ctx)
	t.scheduler = nil
}
