package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Consumer struct {
	client    *RabbitMQ
	queueName string
	prefetch  int
}

func NewConsumer(client *RabbitMQ, queueName string, prefetch int) (*Consumer, error) {
	if err := client.DeclareWithDLQ(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queues: %w", err)
	}

	if prefetch <= 0 {
		prefetch = 10
	}
	if err := client.Channel.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &Consumer{
		client:    client,
		queueName: queueName,
		prefetch:  prefetch,
	}, nil
}

func (c *Consumer) Consume() (<-chan amqp.Delivery, error) {
	consumed, err := c.client.Channel.Consume(c.queueName, "extraction-worker", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %s queue: %w", c.queueName, err)
	}

	return consumed, nil
}
