package domain

import (
	"context"
	"errors"
	"time"
)

// ErrOutboxEntryNotFound возвращается, если записи нет в очереди.
var ErrOutboxEntryNotFound = errors.New("outbox entry not found")

// OutboxEntry событие об оформленном заказе, которое не удалось опубликовать сразу.
type OutboxEntry struct {
	ID         string
	Order      Order
	Attempts   int
	LastError  string
	EnqueuedAt time.Time
}

// OutboxStats состояние очереди на момент чтения.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// EventOutbox хранит события до успешной повторной публикации.
type EventOutbox interface {
	// Enqueue ставит событие в очередь со статусом pending.
	Enqueue(ctx context.Context, order Order, cause error) (OutboxEntry, error)
	// PullPending возвращает до limit pending-записей, старые первыми.
	PullPending(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkSent(ctx context.Context, id string) error
	// MarkFailed переводит запись в failed: больше она не выдаётся.
	MarkFailed(ctx context.Context, id string, cause error) error
	Stats(ctx context.Context) (OutboxStats, error)
}
