package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elishakaranja/Mindset-coach/internal/common"
	"github.com/elishakaranja/Mindset-coach/internal/store/rabbitmq"
)

// RunWorker consumes reply jobs until ctx is cancelled.
func (a *App) RunWorker(ctx context.Context) error {
	if a.Cfg.RabbitURL == "" {
		return errors.New("RABBIT_URL is required for the worker")
	}
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         a.Cfg.RabbitURL,
		Queue:       a.Cfg.RabbitQueue,
		Concurrency: a.Cfg.WorkerConcurrency,
		MaxAttempts: a.Cfg.RabbitMaxAttempts,
		RetryDelay:  time.Duration(a.Cfg.RabbitRetryDelay) * time.Second,
	}, a.Log)
	if err != nil {
		return fmt.Errorf("rabbit consumer: %w", err)
	}
	defer consumer.Close()

	return consumer.Run(ctx, a.handleJob)
}

// handleJob runs one job. Missing jobs and model failures are final: the job
// row already records the outcome, so redelivery would change nothing.
func (a *App) handleJob(ctx context.Context, jobID string) error {
	start := time.Now()
	err := a.Chat.RunJob(ctx, jobID)
	cost := time.Since(start)

	switch {
	case err == nil:
		if cost > 2*time.Second {
			a.Log.Info("job_timing", zap.String("job_id", jobID), zap.Duration("total", cost))
		}
		return nil
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrModel):
		a.Log.Warn("job_timing_failed", zap.String("job_id", jobID), zap.Duration("total", cost), zap.Error(err))
		return fmt.Errorf("%w: %w", rabbitmq.ErrPermanent, err)
	default:
		return err
	}
}
