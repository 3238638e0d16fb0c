package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one job. A nil return acks the delivery.
type Handler func(ctx context.Context, jobID string) error

// ErrPermanent marks failures that must not be retried.
var ErrPermanent = errors.New("permanent failure")

type ConsumerConfig struct {
	URL         string
	Queue       string
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration
}

// Consumer runs a fixed pool of workers over the main queue. Failed jobs are
// republished to the retry queue until MaxAttempts, then rejected to the DLQ.
type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	topo Topology
	cfg  ConsumerConfig
	log  *zap.Logger

	// retry publishes msg on the retry queue; swapped in tests
	retry func(ctx context.Context, msg amqp.Publishing) error
}

func NewConsumer(cfg ConsumerConfig, log *zap.Logger) (*Consumer, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	topo := TopologyFor(cfg.Queue)
	conn, ch, err := dial(cfg.URL, topo, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	// strict concurrency control
	if err := ch.Qos(cfg.Concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	c := &Consumer{conn: conn, ch: ch, topo: topo, cfg: cfg, log: log}
	var mu sync.Mutex
	c.retry = func(ctx context.Context, msg amqp.Publishing) error {
		mu.Lock()
		defer mu.Unlock()
		return ch.PublishWithContext(ctx, "", topo.Retry, false, false, msg)
	}
	return c, nil
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Run blocks until ctx is cancelled or the broker closes the delivery channel.
// In-flight jobs finish before it returns.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	msgs, err := c.ch.Consume(c.topo.Main, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.log.Info("worker started",
		zap.String("queue", c.topo.Main),
		zap.Int("concurrency", c.cfg.Concurrency),
		zap.Int("max_attempts", c.cfg.MaxAttempts))

	// worker pool
	jobs := make(chan amqp.Delivery, c.cfg.Concurrency*2)
	var wg sync.WaitGroup
	wg.Add(c.cfg.Concurrency)
	for i := 0; i < c.cfg.Concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.process(ctx, workerID, d, h)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			c.log.Info("worker shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			jobs <- d
		}
	}
}

func (c *Consumer) process(ctx context.Context, workerID int, d amqp.Delivery, h Handler) {
	log := c.log.With(zap.Int("worker", workerID))

	var m JobMessage
	if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
		log.Warn("bad message", zap.Error(err), zap.ByteString("body", d.Body))
		_ = d.Nack(false, false)
		return
	}
	log = log.With(zap.String("job_id", m.JobID))

	start := time.Now()
	err := h(ctx, m.JobID)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Warn("ack failed", zap.Error(err))
		}
		if cost := time.Since(start); cost > 2*time.Second {
			log.Info("slow job", zap.Duration("cost", cost))
		}
		return
	}

	attempt := attemptOf(d.Headers) + 1
	log = log.With(zap.Int("attempt", attempt), zap.Duration("cost", time.Since(start)), zap.Error(err))
	if errors.Is(err, ErrPermanent) || attempt >= c.cfg.MaxAttempts {
		log.Error("job failed, parking in dlq")
		_ = d.Nack(false, false)
		return
	}

	if rerr := c.retry(context.WithoutCancel(ctx), persistent(d.Body, attempt)); rerr != nil {
		log.Error("retry publish failed, parking in dlq", zap.NamedError("publish_error", rerr))
		_ = d.Nack(false, false)
		return
	}
	log.Warn("job failed, scheduled retry")
	_ = d.Ack(false)
}
