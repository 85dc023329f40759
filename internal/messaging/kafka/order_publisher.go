package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// OrderPublisher публикует order.placed в Kafka topic.
type OrderPublisher struct {
	producer *Producer
	topic    string
}

// NewOrderPublisher создаёт паблишер; пустой topic заменяется на TopicOrderEvents.
func NewOrderPublisher(producer *Producer, topic string) *OrderPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OrderPublisher{producer: producer, topic: topic}
}

// PublishOrderPlaced отправляет событие с ключом order.ID.
func (p *OrderPublisher) PublishOrderPlaced(order domain.Order) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka order publisher is not initialized")
	}
	return p.producer.PublishEvent(p.topic, order.ID, EventTypeOrderPlaced, NewOrderPlacedEvent(order))
}

// PublishDeadLetter отправляет order.placed в DLQ topic вместе с причиной отказа.
func (p *OrderPublisher) PublishDeadLetter(order domain.Order, attempts int, cause error) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka order publisher is not initialized")
	}

	original, err := json.Marshal(NewOrderPlacedEvent(order))
	if err != nil {
		return fmt.Errorf("marshal original event: %w", err)
	}

	event := DeadLetterEvent{
		OriginalTopic: p.topic,
		OriginalKey:   order.ID,
		OriginalValue: string(original),
		Attempts:      attempts,
		FailedAt:      time.Now().UTC(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	return p.producer.PublishEvent(DeadLetterTopic(p.topic), order.ID, EventTypeDeadLetter, event)
}

var _ domain.OrderEventPublisher = (*OrderPublisher)(nil)
