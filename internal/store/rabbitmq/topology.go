package rabbitmq

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobMessage is the body of every reply-job delivery.
type JobMessage struct {
	JobID string `json:"job_id"`
}

// Topology names the three queues behind one logical job queue:
//
//	main  -> dead-letters to dlq on reject
//	retry -> message TTL, then dead-letters back to main
//	dlq   -> parked for inspection
type Topology struct {
	Main  string
	Retry string
	DLQ   string
}

func TopologyFor(queue string) Topology {
	return Topology{Main: queue, Retry: queue + ".retry", DLQ: queue + ".dlq"}
}

// declare is idempotent; publisher and worker both call it so either can
// start first.
func declare(ch *amqp.Channel, t Topology, retryDelay time.Duration) error {
	if _, err := ch.QueueDeclare(t.DLQ, true, false, false, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(t.Retry, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": t.Main,
		"x-message-ttl":             int32(retryDelay / time.Millisecond),
	}); err != nil {
		return err
	}

	_, err := ch.QueueDeclare(t.Main, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": t.DLQ,
	})
	return err
}

func dial(url string, t Topology, retryDelay time.Duration) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	if err := declare(ch, t, retryDelay); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

const attemptHeader = "x-attempt"

// attemptOf reads the delivery attempt counter; first deliveries carry none.
func attemptOf(h amqp.Table) int {
	switch v := h[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func persistent(body []byte, attempt int) amqp.Publishing {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	}
	if attempt > 0 {
		msg.Headers = amqp.Table{attemptHeader: int32(attempt)}
	}
	return msg
}
