package outbox

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
)

// DeferringPublisher сначала публикует напрямую, а при ошибке ставит событие
// в очередь для Worker. Ошибка возвращается, только если не удалось и то и другое.
type DeferringPublisher struct {
	primary domain.OrderEventPublisher
	queue   domain.EventOutbox
	logger  *log.Entry
	metrics *metrics.OutboxMetrics
}

// NewDeferringPublisher создаёт паблишер поверх primary и очереди.
func NewDeferringPublisher(primary domain.OrderEventPublisher, queue domain.EventOutbox, logger *log.Entry, m *metrics.OutboxMetrics) *DeferringPublisher {
	if logger == nil {
		logger = log.WithField("component", "outbox-publisher")
	}
	return &DeferringPublisher{
		primary: primary,
		queue:   queue,
		logger:  logger,
		metrics: m,
	}
}

// PublishOrderPlaced реализует domain.OrderEventPublisher.
func (p *DeferringPublisher) PublishOrderPlaced(order domain.Order) error {
	err := p.primary.PublishOrderPlaced(order)
	if err == nil {
		return nil
	}

	entry, enqueueErr := p.queue.Enqueue(context.Background(), order, err)
	if enqueueErr != nil {
		return errors.Join(err, fmt.Errorf("enqueue order event: %w", enqueueErr))
	}

	if p.metrics != nil {
		p.metrics.RecordAttempt(metrics.OutboxDeferred)
	}
	p.logger.WithError(err).WithFields(log.Fields{
		"order_id":  order.ID,
		"outbox_id": entry.ID,
	}).Warn("order event deferred for redelivery")
	return nil
}

var _ domain.OrderEventPublisher = (*DeferringPublisher)(nil)
