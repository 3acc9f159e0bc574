package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/institute-service/internal/models"
	"github.com/Dan9191/institute-service/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const sweepTimeout = 10 * time.Minute

// Sweeper runs one overdue sweep for a calendar day
type Sweeper interface {
	Sweep(ctx context.Context, today time.Time) (*service.SweepReport, error)
}

// Scheduler triggers the overdue sweep on a cron schedule
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	location *time.Location
	log      *logrus.Logger
	now      func() time.Time
}

// New registers the sweep under spec, evaluated in loc. Overlapping runs are skipped.
func New(sweeper Sweeper, spec string, loc *time.Location, log *logrus.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		sweeper:  sweeper,
		location: loc,
		log:      log,
		now:      time.Now,
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))),
	)
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce sweeps for the current day in the scheduler's location
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	today := models.DateOf(s.now().In(s.location))
	s.log.Infof("Running overdue sweep for %s", today.Format("2006-01-02"))
	report, err := s.sweeper.Sweep(ctx, today)
	if err != nil {
		s.log.Errorf("Overdue sweep finished with errors: %v", err)
	}
	if report != nil {
		s.log.WithFields(logrus.Fields{
			"scanned":      report.Scanned,
			"transitioned": len(report.Transitioned),
			"failed":       report.Failed,
		}).Info("Overdue sweep done")
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Infof("Sweep scheduler started (%s)", s.location)
}

// Stop halts the schedule; the returned context is done once a running sweep finishes
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
