package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// EventType определяет тип события
type EventType string

// EventTypeOrderPlaced публикуется после сохранения нового заказа.
const EventTypeOrderPlaced EventType = "order.placed"

// TopicOrderEvents topic событий заказов, ключ сообщения ID заказа.
const TopicOrderEvents = "ordercore.order.events"

// EventTypeDeadLetter событие, которое не удалось доставить после всех попыток.
const EventTypeDeadLetter EventType = "dead_letter"

// DeadLetterTopic возвращает DLQ topic для topic событий.
func DeadLetterTopic(topic string) string {
	return topic + ".dlq"
}

// Kafka headers
const (
	HeaderEventType = "x-event-type"
	HeaderEventID   = "x-event-id"
)

// OrderLine позиция заказа в событии. Цены передаются строками без потери точности.
type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Price     string `json:"price"`
	Total     string `json:"total"`
}

// OrderPlacedEvent событие об оформленном заказе
type OrderPlacedEvent struct {
	EventType  EventType   `json:"event_type"`
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Lines      []OrderLine `json:"lines"`
	Total      string      `json:"total"`
	PlacedAt   time.Time   `json:"placed_at"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewOrderPlacedEvent собирает событие из сохранённого заказа.
func NewOrderPlacedEvent(order domain.Order) *OrderPlacedEvent {
	lines := make([]OrderLine, 0, len(order.Products))
	for _, line := range order.Products {
		lines = append(lines, OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     domain.FormatMoney(line.Price),
			Total:     domain.FormatMoney(line.Total()),
		})
	}

	return &OrderPlacedEvent{
		EventType:  EventTypeOrderPlaced,
		OrderID:    order.ID,
		CustomerID: order.Customer.ID,
		Lines:      lines,
		Total:      domain.FormatMoney(order.Total()),
		PlacedAt:   order.CreatedAt,
		Timestamp:  time.Now().UTC(),
	}
}

// DeadLetterEvent обёртка над исходным сообщением для DLQ.
// OriginalValue хранит JSON исходного события без изменений, чтобы его можно было переиграть.
type DeadLetterEvent struct {
	OriginalTopic string    `json:"original_topic"`
	OriginalKey   string    `json:"original_key"`
	OriginalValue string    `json:"original_value"`
	Error         string    `json:"error"`
	Attempts      int       `json:"attempts"`
	FailedAt      time.Time `json:"failed_at"`
}
