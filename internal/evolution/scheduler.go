package evolution

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/promptshield/promptshield/backend/internal/logger"
)

// Scheduler fires the evolution cycle on a fixed interval, independent of
// request traffic. Triggers that arrive while a cycle is still in flight are
// skipped, never queued.
type Scheduler struct {
	cron *cron.Cron
}

// StartScheduler registers the cycle under spec (cron expression or
// "@every 5m" shorthand) and starts the timer.
func StartScheduler(spec string, engine *Engine) (*Scheduler, error) {
	cl := cronLog{}
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cl),
		cron.Recover(cl),
	))

	if _, err := c.AddFunc(spec, func() {
		engine.RunCycle(context.Background())
	}); err != nil {
		return nil, err
	}

	c.Start()
	logger.Log().WithField("spec", spec).Info("evolution scheduler started")

	return &Scheduler{cron: c}, nil
}

// Stop halts the timer and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// cronLog adapts logrus to cron's logger contract.
type cronLog struct{}

func (cronLog) Info(msg string, keysAndValues ...interface{}) {
	logger.Log().WithField("cron", keysAndValues).Debug(msg)
}

func (cronLog) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Log().WithError(err).WithField("cron", keysAndValues).Error(msg)
}
