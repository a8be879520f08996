package queue

import (
	"encoding/json"

	"github.com/streadway/amqp"
)

// RetryQueueName is shared between the API (publisher) and the worker
// (consumer).
const RetryQueueName = "delivery_retries"

// RetryJob is the wire payload for one queued retry.
type RetryJob struct {
	DeliveryID int `json:"delivery_id"`
}

// Publisher enqueues delivery retries.
type Publisher interface {
	PublishRetry(deliveryID int) error
}

// AMQPQueue is a RabbitMQ-backed publisher. The connection is dialed once
// at startup and reused for every publish.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	name string
}

func Dial(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	q, err := ch.QueueDeclare(
		RetryQueueName, // name
		true,           // durable
		false,          // delete when unused
		false,          // exclusive
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPQueue{conn: conn, ch: ch, name: q.Name}, nil
}

func (q *AMQPQueue) PublishRetry(deliveryID int) error {
	body, err := json.Marshal(RetryJob{DeliveryID: deliveryID})
	if err != nil {
		return err
	}
	return q.ch.Publish(
		"",
		q.name,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (q *AMQPQueue) Close() {
	q.ch.Close()
	q.conn.Close()
}

var _ Publisher = (*AMQPQueue)(nil)
