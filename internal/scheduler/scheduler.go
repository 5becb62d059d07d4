package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ovenly/api/internal/config"
)

const jobTimeout = 2 * time.Minute

// RecurringGenerator materializes due recurring internal orders.
// Satisfied by *service.InternalOrderService.
type RecurringGenerator interface {
	GenerateRecurringOrders(ctx context.Context, asOf time.Time) (int, error)
}

// LockPurger deletes expired edit locks. Satisfied by *lock.Manager.
type LockPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	cfg       config.SchedulerConfig
	loc       *time.Location
	recurring RecurringGenerator
	locks     LockPurger
	now       func() time.Time
	logger    *zap.Logger
}

// NewScheduler creates a new scheduler instance. Cron expressions are evaluated
// in loc, the bakery's local time.
func NewScheduler(cfg config.SchedulerConfig, loc *time.Location, recurring RecurringGenerator, locks LockPurger, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		cfg:       cfg,
		loc:       loc,
		recurring: recurring,
		locks:     locks,
		now:       time.Now,
		logger:    logger,
	}
}

// Start registers the jobs and starts the scheduler. It fails if a cron
// expression does not parse.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("recurring_orders_cron", s.cfg.RecurringOrdersCron),
		zap.String("lock_purge_cron", s.cfg.LockPurgeCron))

	if _, err := s.cron.AddFunc(s.cfg.RecurringOrdersCron, s.generateRecurringOrders); err != nil {
		return fmt.Errorf("schedule recurring orders: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.LockPurgeCron, s.purgeExpiredLocks); err != nil {
		return fmt.Errorf("schedule lock purge: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// today is the bakery's current calendar date as a UTC midnight.
func (s *Scheduler) today() time.Time {
	y, m, d := s.now().In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Scheduler) generateRecurringOrders() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	asOf := s.today()
	n, err := s.recurring.GenerateRecurringOrders(ctx, asOf)
	if err != nil {
		// Some templates may have succeeded; the failed ones keep their date and
		// are retried on the next run.
		s.logger.Error("recurring order generation failed",
			zap.String("as_of", asOf.Format("2006-01-02")),
			zap.Int("created", n),
			zap.Error(err))
		return
	}
	s.logger.Info("recurring orders generated",
		zap.String("as_of", asOf.Format("2006-01-02")),
		zap.Int("created", n))
}

func (s *Scheduler) purgeExpiredLocks() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.locks.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("lock purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Debug("expired locks purged", zap.Int("count", n))
	}
}
