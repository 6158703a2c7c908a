package messaging

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
)

// Sender 由 mq.KafkaProducer 实现
type Sender interface {
	SendMessage(ctx context.Context, topic, key string, value any) error
}

// Envelope 事件信封
type Envelope struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// KafkaPublisher 把领域事件写入 Kafka，消息 key 为任务 ID 以保证同一任务有序
type KafkaPublisher struct {
	sender Sender
	topic  string
}

func NewKafkaPublisher(sender Sender, topic string) *KafkaPublisher {
	return &KafkaPublisher{sender: sender, topic: topic}
}

func (p *KafkaPublisher) PublishRunCompleted(ctx context.Context, event domain.RunCompletedEvent) error {
	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  event.EventType(),
		TraceID:    logger.TraceID(ctx),
		OccurredAt: event.OccurredAt,
		Payload:    event,
	}
	if err := p.sender.SendMessage(ctx, p.topic, strconv.FormatUint(event.TaskID, 10), env); err != nil {
		return err
	}
	logger.Debug(ctx, "run completed event published", "event_id", env.EventID, "task_id", event.TaskID)
	return nil
}
