package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher enqueues reply jobs on the main queue. It satisfies
// chat.JobPublisher.
type Publisher struct {
	mu   sync.Mutex // amqp channels are not safe for concurrent publishes
	conn *amqp.Connection
	ch   *amqp.Channel
	topo Topology
}

func NewPublisher(url, queue string, retryDelay time.Duration) (*Publisher, error) {
	topo := TopologyFor(queue)
	conn, ch, err := dial(url, topo, retryDelay)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, topo: topo}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *Publisher) PublishJob(ctx context.Context, jobID string) error {
	body, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",          // default exchange
		p.topo.Main, // routing key = queue
		false,
		false,
		persistent(body, 0),
	)
}
