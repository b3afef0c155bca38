package worker

import (
	"context"
	"time"

	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

// Sweeper evaluates liveness of every open vault.
type Sweeper interface {
	Sweep(ctx context.Context) (model.SweepReport, error)
}

// OutboxProcessor promotes pending audit intents.
type OutboxProcessor interface {
	ProcessOutbox(ctx context.Context, batchSize int) (model.ProcessStats, error)
}

// LivenessJob runs one liveness sweep per tick and logs its report.
func LivenessJob(sweeper Sweeper, interval time.Duration, logger *logger.Logger) Job {
	return Job{
		Name:     "liveness",
		Interval: interval,
		Run: func(ctx context.Context) error {
			report, err := sweeper.Sweep(ctx)
			if err != nil {
				return err
			}

			logger.Info("Liveness job: sweep finished",
				"scanned", report.Scanned,
				"skipped", report.Skipped,
				"reminded", report.Reminded,
				"entered_grace", report.EnteredGrace,
				"became_inheritable", report.BecameInheritable,
				"failed", report.Failed)
			return nil
		},
	}
}

// OutboxJob promotes up to batchSize outbox items per tick.
func OutboxJob(processor OutboxProcessor, interval time.Duration, batchSize int, logger *logger.Logger) Job {
	return Job{
		Name:     "audit-outbox",
		Interval: interval,
		Run: func(ctx context.Context) error {
			stats, err := processor.ProcessOutbox(ctx, batchSize)
			if err != nil {
				return err
			}
			if stats.Fetched == 0 {
				return nil
			}

			level := logger.Debug
			if stats.Failed > 0 {
				level = logger.Warn
			}
			level("Outbox job: batch processed",
				"fetched", stats.Fetched,
				"processed", stats.Processed,
				"failed", stats.Failed,
				"dead_lettered", stats.DeadLettered)
			return nil
		},
	}
}
