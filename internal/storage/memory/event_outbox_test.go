package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
)

func placedOrder(id string) domain.Order {
	return domain.Order{
		ID:       id,
		Customer: domain.Customer{ID: "C1"},
		Products: []domain.PricedLineItem{
			{ProductID: "P1", Quantity: 1, Price: decimal.RequireFromString("10.00")},
		},
	}
}

func TestEventOutbox_EnqueuePullInOrder(t *testing.T) {
	ctx := context.Background()
	outbox := memory.NewEventOutbox()

	first, err := outbox.Enqueue(ctx, placedOrder("order-1"), errors.New("broker down"))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if first.ID == "" || first.LastError != "broker down" {
		t.Fatalf("unexpected entry: %+v", first)
	}
	time.Sleep(time.Millisecond)
	if _, err := outbox.Enqueue(ctx, placedOrder("order-2"), nil); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	pending, err := outbox.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 2 || pending[0].Order.ID != "order-1" || pending[1].Order.ID != "order-2" {
		t.Fatalf("unexpected pending order: %+v", pending)
	}

	limited, _ := outbox.PullPending(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	stats, _ := outbox.Stats(ctx)
	if stats.PendingCount != 2 || !stats.OldestPendingAt.Equal(first.EnqueuedAt) {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestEventOutbox_MarkSentAndFailed(t *testing.T) {
	ctx := context.Background()
	outbox := memory.NewEventOutbox()

	sent, _ := outbox.Enqueue(ctx, placedOrder("order-1"), nil)
	failed, _ := outbox.Enqueue(ctx, placedOrder("order-2"), nil)

	if err := outbox.MarkSent(ctx, sent.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := outbox.MarkFailed(ctx, failed.ID, errors.New("gave up")); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	pending, _ := outbox.PullPending(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected empty queue, got %+v", pending)
	}
	stats, _ := outbox.Stats(ctx)
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	dead := outbox.Failed()
	if len(dead) != 1 || dead[0].Order.ID != "order-2" || dead[0].LastError != "gave up" {
		t.Fatalf("unexpected failed entries: %+v", dead)
	}

	if err := outbox.MarkSent(ctx, "missing"); !errors.Is(err, domain.ErrOutboxEntryNotFound) {
		t.Fatalf("expected ErrOutboxEntryNotFound, got %v", err)
	}
}

func TestEventOutbox_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	outbox := memory.NewEventOutbox()

	order := placedOrder("order-1")
	if _, err := outbox.Enqueue(ctx, order, nil); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	order.Products[0].Quantity = 99

	pending, _ := outbox.PullPending(ctx, 1)
	pending[0].Order.Products[0].ProductID = "mutated"

	again, _ := outbox.PullPending(ctx, 1)
	if again[0].Order.Products[0].Quantity != 1 || again[0].Order.Products[0].ProductID != "P1" {
		t.Fatalf("outbox leaked internal state: %+v", again[0].Order.Products)
	}
}
