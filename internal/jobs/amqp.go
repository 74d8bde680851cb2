package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ReconnectDelay is how long callers wait before redialling a broker after
// Consume returns ErrDeliveriesClosed.
const ReconnectDelay = 5 * time.Second

// ErrDeliveriesClosed is returned by Consume when the broker closes the
// delivery stream, usually because the connection dropped.
var ErrDeliveriesClosed = errors.New("jobs: amqp delivery channel closed")

// AMQPQueue is a Queue on a durable RabbitMQ queue. Messages are persistent
// and acknowledged only after the handler returns.
type AMQPQueue struct {
	name    string
	workers int

	conn *amqp.Connection
	ch   *amqp.Channel

	mu     sync.Mutex // guards publishing on ch and closed
	closed bool
}

// DialAMQP connects to url and declares the durable queue.
func DialAMQP(url, queue string, workers int) (*AMQPQueue, error) {
	if workers < 1 {
		workers = 1
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}
	// At most one unacknowledged message per worker.
	if err := ch.Qos(workers, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	logf("connected to amqp queue %q", queue)
	return &AMQPQueue{name: queue, workers: workers, conn: conn, ch: ch}, nil
}

// Publish sends j as a persistent message.
func (q *AMQPQueue) Publish(ctx context.Context, j Job) error {
	body, err := j.Encode()
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	return q.ch.PublishWithContext(ctx,
		"",     // exchange
		q.name, // routing key
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    j.ID.String(),
			Timestamp:    j.EnqueuedAt,
			Body:         body,
		},
	)
}

// Consume dispatches deliveries to workers goroutines. It returns nil when
// ctx is cancelled or the queue is closed, and ErrDeliveriesClosed when the
// broker goes away.
func (q *AMQPQueue) Consume(ctx context.Context, h Handler) error {
	deliveries, err := q.ch.Consume(
		q.name, // queue
		"",     // consumer
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("consume %q: %w", q.name, err)
	}

	var (
		wg       sync.WaitGroup
		lostOnce sync.Once
		lost     bool
	)
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case d, ok := <-deliveries:
					if !ok {
						lostOnce.Do(func() { lost = true })
						return
					}
					settle(ctx, d, h)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	wg.Wait()

	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if lost && !closed && ctx.Err() == nil {
		return ErrDeliveriesClosed
	}
	return nil
}

// Close closes the channel and the connection.
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	chErr := q.ch.Close()
	connErr := q.conn.Close()
	return errors.Join(chErr, connErr)
}

// settle runs h on one delivery and acknowledges it. A failed job is requeued
// once; a redelivered job that fails again, or a body that does not decode,
// is dropped so it cannot loop forever.
func settle(ctx context.Context, d amqp.Delivery, h Handler) {
	j, err := DecodeJob(d.Body)
	if err != nil {
		logf("dropping undecodable message %q: %v", d.MessageId, err)
		if err := d.Nack(false, false); err != nil {
			logf("nack message %q: %v", d.MessageId, err)
		}
		return
	}

	if err := runHandler(ctx, h, j); err != nil {
		if !d.Redelivered {
			if err := d.Nack(false, true); err != nil {
				logf("requeue job %s: %v", j.ID, err)
			}
			return
		}
		logf("dropping job %s after redelivery", j.ID)
	}
	if err := d.Ack(false); err != nil {
		logf("ack job %s: %v", j.ID, err)
	}
}
