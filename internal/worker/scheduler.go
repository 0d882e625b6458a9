package worker

import (
	"context"
	"time"

	"ticketeer/internal/util"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// SalesCloser force-closes ticket sales for events that have started
type SalesCloser interface {
	CloseExpired(ctx context.Context) error
}

// Scheduler runs the periodic sales-close sweep
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
}

// NewScheduler creates a scheduler that closes expired ticket types every
// interval.
func NewScheduler(closer SalesCloser, interval time.Duration) (*Scheduler, error) {
	logger := util.GetLogger()

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := closer.CloseExpired(ctx); err != nil {
				logger.Error("Sales close sweep failed", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.logger.Info("Sales close scheduler started")
}

// Shutdown stops the scheduler and waits for running jobs
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}
