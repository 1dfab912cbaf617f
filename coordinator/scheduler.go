package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/siteguard/pkg/cron"
	"github.com/absmach/siteguard/pkg/fl"
)

const schedulerPageSize = 100

// Scheduler periodically aggregates every started experiment whose current
// round has reached its participant threshold.
type Scheduler struct {
	svc      Service
	schedule *cron.CronSchedule
	timezone string
	logger   *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewScheduler(svc Service, expr, timezone string, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseCronExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse aggregation schedule: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		svc:      svc,
		schedule: schedule,
		timezone: timezone,
		logger:   logger,
		stopChan: make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("aggregation scheduler started", slog.String("schedule", s.schedule.String()))

	for {
		next := cron.CalculateNextRun(s.schedule, time.Now(), s.timezone)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("aggregation scheduler stopping")

			return ctx.Err()
		case <-s.stopChan:
			timer.Stop()
			s.logger.Info("aggregation scheduler stopped")

			return nil
		case <-timer.C:
			if advanced := s.Sweep(ctx); advanced > 0 {
				s.logger.Info("scheduled aggregation advanced experiments", slog.Int("count", advanced))
			}
		}
	}
}

// Stop ends Start. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Sweep runs one threshold-gated aggregation pass over all experiments and
// returns how many of them advanced a round. Failures are logged and skipped.
func (s *Scheduler) Sweep(ctx context.Context) int {
	advanced := 0
	for offset := uint64(0); ; offset += schedulerPageSize {
		page, err := s.svc.ListExperiments(ctx, offset, schedulerPageSize)
		if err != nil {
			s.logger.Error("failed to list experiments for aggregation", slog.Any("error", err))

			return advanced
		}

		for _, e := range page.Experiments {
			if e.Status == fl.StatusCreated {
				continue
			}
			res, ok, err := s.svc.AggregateIfReady(ctx, e.ID)
			if err != nil {
				s.logger.Warn("scheduled aggregation failed",
					slog.String("experiment_id", e.ID),
					slog.Any("error", err))

				continue
			}
			if ok {
				advanced++
				s.logger.Debug("scheduled aggregation committed round",
					slog.String("experiment_id", e.ID),
					slog.Uint64("round", res.Round))
			}
		}

		if len(page.Experiments) == 0 || offset+uint64(len(page.Experiments)) >= page.Total {
			return advanced
		}
	}
}
