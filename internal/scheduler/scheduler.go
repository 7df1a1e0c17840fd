// Package scheduler starts recurring harvest batches on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/job-harvester/internal/batch"
	"github.com/alvmarrod/job-harvester/internal/config"
)

// Starter starts a harvesting batch
type Starter interface {
	StartBatch(ctx context.Context, jobTitles []string, credential string) (*batch.Handle, error)
}

// Scheduler wraps robfig/cron with one entry per configured schedule
type Scheduler struct {
	cron       *cron.Cron
	starter    Starter
	credential string
	schedules  []config.Schedule
}

// New creates a scheduler that starts batches through starter
func New(starter Starter, credential string, schedules []config.Schedule) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLogger(cron.PrintfLogger(logrus.StandardLogger()))),
		starter:    starter,
		credential: credential,
		schedules:  schedules,
	}
}

// Start registers every schedule and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	for _, sched := range s.schedules {
		sched := sched
		if _, err := s.cron.AddFunc(sched.Spec, func() { s.run(ctx, sched) }); err != nil {
			return fmt.Errorf("schedule %q: cron.AddFunc: %w", sched.Name, err)
		}
		logrus.Infof("Scheduled harvest %q (%s): %s", sched.Name, sched.Spec, strings.Join(sched.JobTitles, ", "))
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running trigger to return
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logrus.Info("Scheduler stopped")
}

// Entries returns the number of registered schedules
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) run(ctx context.Context, sched config.Schedule) {
	handle, err := s.starter.StartBatch(ctx, sched.JobTitles, s.credential)
	if err != nil {
		logrus.Errorf("Scheduled harvest %q failed to start: %v", sched.Name, err)
		return
	}
	logrus.Infof("Scheduled harvest %q started batch %s (%d sources)", sched.Name, handle.BatchID, handle.TotalSources)
}
