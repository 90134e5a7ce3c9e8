package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/metrics"
	"github.com/amirasaad/chipload/pkg/repository"
	"github.com/robfig/cron/v3"
)

// Sweeper periodically reconciles pending auto-verified deposits so players
// are credited even when nobody polls.
type Sweeper struct {
	matcher  *Service
	uow      repository.UnitOfWork
	schedule string
	maxAge   time.Duration
	cron     *cron.Cron
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. schedule uses the robfig/cron syntax, e.g. "@every 30s".
func NewSweeper(
	m *Service,
	uow repository.UnitOfWork,
	schedule string,
	maxAge time.Duration,
	metrics *metrics.Metrics,
	logger *slog.Logger,
) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		matcher:  m,
		uow:      uow,
		schedule: schedule,
		maxAge:   maxAge,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		metrics:  metrics,
		logger:   logger.With("component", "sweeper"),
	}
}

// Start schedules the sweep and returns immediately.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.Warn("sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("sweeper started", "schedule", s.schedule, "max_age", s.maxAge)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce reconciles every candidate once and returns how many were settled.
// Feed errors for one transaction do not stop the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	since := s.matcher.opts.Now().UTC().Add(-s.maxAge)
	pending, err := s.uow.TransactionRepository().ListPendingAutoVerified(ctx, since)
	if err != nil {
		s.metrics.RecordSweep(err)
		return 0, err
	}

	settled := 0
	var errs []error
	for _, txn := range pending {
		res, err := s.matcher.Reconcile(ctx, txn.ID)
		switch {
		case errors.Is(err, domain.ErrAlreadyProcessed):
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", txn.ID, err))
		case res.PaymentID != "":
			settled++
		}
	}
	err = errors.Join(errs...)
	s.metrics.RecordSweep(err)
	if len(pending) > 0 {
		s.logger.Info("sweep finished", "candidates", len(pending), "settled", settled, "errors", len(errs))
	}
	return settled, err
}
