package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/idan157001/TestShuffleFinal/internal/types"
)

// Producer publishes extraction tasks. The PDF itself stays in object
// storage; messages only reference it.
type Producer struct {
	client    *RabbitMQ
	queueName string
	logger    *zap.Logger
}

func NewProducer(client *RabbitMQ, queueName string, logger *zap.Logger) (*Producer, error) {
	if err := client.DeclareWithDLQ(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queues: %w", err)
	}

	logger.Info("queues declared",
		zap.String("queue", queueName),
		zap.String("dlq", DLQName(queueName)),
	)

	return &Producer{
		client:    client,
		queueName: queueName,
		logger:    logger,
	}, nil
}

// Schedule publishes the task for a consumer to pick up.
func (p *Producer) Schedule(ctx context.Context, task types.ExtractionTask) error {
	if task.ObjectName == "" {
		return errors.New("extraction task has no archived object")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := p.client.Publish(p.queueName, data); err != nil {
		return fmt.Errorf("failed to publish task: %w", err)
	}

	p.logger.Info("extraction task published",
		zap.String("job_id", task.JobID),
		zap.String("object", task.ObjectName),
	)
	return nil
}
