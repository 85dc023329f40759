package outbox

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/metrics"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
)

type failingQueue struct {
	*memory.EventOutbox
}

func (failingQueue) Enqueue(context.Context, domain.Order, error) (domain.OutboxEntry, error) {
	return domain.OutboxEntry{}, errors.New("queue full")
}

func TestDeferringPublisher_DirectSuccess(t *testing.T) {
	t.Parallel()

	queue := memory.NewEventOutbox()
	primary := &stubPublisher{}
	publisher := NewDeferringPublisher(primary, queue, quietLogger(), nil)

	if err := publisher.PublishOrderPlaced(domain.Order{ID: "order-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats, _ := queue.Stats(context.Background())
	if stats.PendingCount != 0 {
		t.Fatalf("nothing must be queued on success")
	}
}

func TestDeferringPublisher_QueuesOnFailure(t *testing.T) {
	t.Parallel()

	queue := memory.NewEventOutbox()
	primary := &stubPublisher{err: errors.New("broker down")}
	publisher := NewDeferringPublisher(primary, queue, quietLogger(), metrics.NewOutboxMetricsWithRegisterer(prometheus.NewRegistry()))

	if err := publisher.PublishOrderPlaced(domain.Order{ID: "order-2"}); err != nil {
		t.Fatalf("deferred publish must not fail: %v", err)
	}

	pending, _ := queue.PullPending(context.Background(), 10)
	if len(pending) != 1 || pending[0].Order.ID != "order-2" || pending[0].LastError != "broker down" {
		t.Fatalf("unexpected queue content: %+v", pending)
	}
}

func TestDeferringPublisher_ReturnsBothErrors(t *testing.T) {
	t.Parallel()

	primaryErr := errors.New("broker down")
	publisher := NewDeferringPublisher(&stubPublisher{err: primaryErr}, failingQueue{memory.NewEventOutbox()}, quietLogger(), nil)

	err := publisher.PublishOrderPlaced(domain.Order{ID: "order-3"})
	if !errors.Is(err, primaryErr) {
		t.Fatalf("expected primary error in chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "queue full") {
		t.Fatalf("expected enqueue error in message, got %v", err)
	}
}
