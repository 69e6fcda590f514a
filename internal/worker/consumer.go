package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/idan157001/TestShuffleFinal/internal/types"
)

// DeliverySource yields queue deliveries.
type DeliverySource interface {
	Consume() (<-chan amqp.Delivery, error)
}

// Consumer runs extraction tasks received from RabbitMQ. Every decoded task
// is acked after the handler returns; the job record carries the outcome.
type Consumer struct {
	source      DeliverySource
	handler     Handler
	logger      *zap.Logger
	concurrency int
}

func NewConsumer(source DeliverySource, handler Handler, logger *zap.Logger, concurrency int) *Consumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Consumer{
		source:      source,
		handler:     handler,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Start consumes until ctx is cancelled or the delivery channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	messages, err := c.source.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("starting extraction consumer", zap.Int("concurrency", c.concurrency))

	var wg sync.WaitGroup
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.worker(ctx, workerID, messages)
		}(i + 1)
	}
	wg.Wait()

	return ctx.Err()
}

func (c *Consumer) worker(ctx context.Context, workerID int, messages <-chan amqp.Delivery) {
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				c.logger.Debug("consumer worker stopped (channel closed)", zap.Int("worker_id", workerID))
				return
			}
			c.handle(ctx, workerID, msg)
		case <-ctx.Done():
			c.logger.Debug("consumer worker stopped (context cancelled)", zap.Int("worker_id", workerID))
			return
		}
	}
}

func (c *Consumer) handle(ctx context.Context, workerID int, msg amqp.Delivery) {
	var task types.ExtractionTask
	if err := json.Unmarshal(msg.Body, &task); err != nil || task.JobID == "" {
		c.logger.Error("malformed extraction task, sending to DLQ",
			zap.Int("worker_id", workerID),
			zap.Error(err),
		)
		if nackErr := msg.Nack(false, false); nackErr != nil {
			c.logger.Warn("failed to nack message", zap.Error(nackErr))
		}
		return
	}

	if err := c.handler(context.WithoutCancel(ctx), task); err != nil {
		c.logger.Error("extraction failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", task.JobID),
			zap.Error(err),
		)
	}

	if err := msg.Ack(false); err != nil {
		c.logger.Warn("failed to ack message", zap.String("job_id", task.JobID), zap.Error(err))
	}
}
