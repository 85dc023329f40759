package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

type outboxStatus string

const (
	outboxPending outboxStatus = "pending"
	outboxSent    outboxStatus = "sent"
	outboxFailed  outboxStatus = "failed"
)

// outboxRecord хранит запись и служебные поля in-memory реализации.
type outboxRecord struct {
	entry     domain.OutboxEntry
	status    outboxStatus
	updatedAt time.Time
}

// EventOutbox in-memory очередь событий на повторную публикацию.
// Содержимое не переживает перезапуск процесса.
type EventOutbox struct {
	mu      sync.RWMutex
	records map[string]*outboxRecord
}

// NewEventOutbox создаёт пустую очередь.
func NewEventOutbox() *EventOutbox {
	return &EventOutbox{records: make(map[string]*outboxRecord)}
}

// Enqueue сохраняет событие со статусом pending.
func (r *EventOutbox) Enqueue(_ context.Context, order domain.Order, cause error) (domain.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	entry := domain.OutboxEntry{
		ID:         uuid.NewString(),
		Order:      cloneOrder(order),
		EnqueuedAt: now,
	}
	if cause != nil {
		entry.LastError = cause.Error()
	}
	r.records[entry.ID] = &outboxRecord{
		entry:     entry,
		status:    outboxPending,
		updatedAt: now,
	}
	return entry, nil
}

// PullPending возвращает до limit pending-записей в порядке постановки.
func (r *EventOutbox) PullPending(_ context.Context, limit int) ([]domain.OutboxEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	result := make([]domain.OutboxEntry, 0, len(r.records))
	for _, rec := range r.records {
		if rec.status != outboxPending {
			continue
		}
		entry := rec.entry
		entry.Order = cloneOrder(entry.Order)
		result = append(result, entry)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].EnqueuedAt.Equal(result[j].EnqueuedAt) {
			return result[i].EnqueuedAt.Before(result[j].EnqueuedAt)
		}
		return result[i].ID < result[j].ID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkSent отмечает успешную публикацию.
func (r *EventOutbox) MarkSent(_ context.Context, id string) error {
	return r.mark(id, outboxSent, nil)
}

// MarkFailed фиксирует окончательную ошибку публикации.
func (r *EventOutbox) MarkFailed(_ context.Context, id string, cause error) error {
	return r.mark(id, outboxFailed, cause)
}

func (r *EventOutbox) mark(id string, status outboxStatus, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return domain.ErrOutboxEntryNotFound
	}
	record.status = status
	record.entry.Attempts++
	if cause != nil {
		record.entry.LastError = cause.Error()
	}
	record.updatedAt = time.Now().UTC()
	return nil
}

// Stats возвращает число pending-записей и время самой старой из них.
func (r *EventOutbox) Stats(_ context.Context) (domain.OutboxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.OutboxStats
	for _, rec := range r.records {
		if rec.status != outboxPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.entry.EnqueuedAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.entry.EnqueuedAt
		}
	}
	return stats, nil
}

// Failed возвращает записи со статусом failed.
func (r *EventOutbox) Failed() []domain.OutboxEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.OutboxEntry, 0)
	for _, rec := range r.records {
		if rec.status == outboxFailed {
			result = append(result, rec.entry)
		}
	}
	return result
}

func cloneOrder(order domain.Order) domain.Order {
	order.Products = copyLines(order.Products)
	return order
}

var _ domain.EventOutbox = (*EventOutbox)(nil)
