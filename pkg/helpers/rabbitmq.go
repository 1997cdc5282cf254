package helpers

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// rabbitQueue is an AMQP connection with one channel bound to a durable queue.
type rabbitQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	Queue string
}

func dialQueue(url, queue string) (*rabbitQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &rabbitQueue{conn: conn, ch: ch, Queue: queue}, nil
}

func (q *rabbitQueue) Close() {
	if q == nil {
		return
	}
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		_ = q.conn.Close()
	}
}

// RabbitPublisher publishes JSON messages to a durable queue.
type RabbitPublisher struct {
	*rabbitQueue
}

func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	q, err := dialQueue(url, queue)
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{rabbitQueue: q}, nil
}

// PublishJSON publishes a persistent JSON message through the default exchange.
func (p *RabbitPublisher) PublishJSON(ctx context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         b,
		},
	)
}

// RabbitConsumer reads from a durable queue with manual acks.
type RabbitConsumer struct {
	*rabbitQueue
}

// NewRabbitConsumer dials url and limits unacked deliveries to prefetch.
func NewRabbitConsumer(url, queue string, prefetch int) (*RabbitConsumer, error) {
	q, err := dialQueue(url, queue)
	if err != nil {
		return nil, err
	}
	if err := q.ch.Qos(prefetch, 0, false); err != nil {
		q.Close()
		return nil, err
	}
	return &RabbitConsumer{rabbitQueue: q}, nil
}

func (c *RabbitConsumer) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	return c.ch.Consume(c.Queue, consumerTag, false, false, false, false, nil)
}
