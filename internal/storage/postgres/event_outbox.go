package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

const defaultOutboxBatch = 100

// EventOutbox хранит отложенные события order.placed в таблице order_event_outbox.
// В строке лежит только ссылка на заказ, сам заказ читается из orders при выдаче.
type EventOutbox struct {
	db     *sql.DB
	orders *OrderStore
	now    func() time.Time
}

// NewEventOutbox создаёт очередь поверх store.
func NewEventOutbox(store *Store) *EventOutbox {
	return &EventOutbox{
		db:     store.DB(),
		orders: NewOrderStore(store),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue ставит событие заказа в очередь со статусом pending.
func (r *EventOutbox) Enqueue(ctx context.Context, order domain.Order, cause error) (domain.OutboxEntry, error) {
	now := r.now().Truncate(time.Microsecond)
	entry := domain.OutboxEntry{
		ID:         uuid.NewString(),
		Order:      order,
		EnqueuedAt: now,
	}
	if cause != nil {
		entry.LastError = cause.Error()
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(queryCtx, `
		INSERT INTO order_event_outbox (id, order_id, status, attempt_count, last_error, enqueued_at, updated_at)
		VALUES ($1, $2, 'pending', 0, $3, $4, $4)
	`, entry.ID, order.ID, entry.LastError, now); err != nil {
		return domain.OutboxEntry{}, fmt.Errorf("enqueue event for order %s: %w", order.ID, err)
	}
	return entry, nil
}

// PullPending возвращает до limit pending-записей, старые первыми.
func (r *EventOutbox) PullPending(ctx context.Context, limit int) ([]domain.OutboxEntry, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(queryCtx, `
		SELECT id, order_id, attempt_count, last_error, enqueued_at
		FROM order_event_outbox
		WHERE status = 'pending'
		ORDER BY enqueued_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending order events: %w", err)
	}

	type pendingRow struct {
		entry   domain.OutboxEntry
		orderID string
	}
	pending := make([]pendingRow, 0, limit)
	for rows.Next() {
		var row pendingRow
		if err := rows.Scan(&row.entry.ID, &row.orderID, &row.entry.Attempts, &row.entry.LastError, &row.entry.EnqueuedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		row.entry.EnqueuedAt = row.entry.EnqueuedAt.UTC()
		pending = append(pending, row)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate order events: %w", err)
	}
	_ = rows.Close()

	result := make([]domain.OutboxEntry, 0, len(pending))
	for _, row := range pending {
		order, err := r.orders.Get(ctx, row.orderID)
		if err != nil {
			return nil, fmt.Errorf("load order %s for event %s: %w", row.orderID, row.entry.ID, err)
		}
		row.entry.Order = order
		result = append(result, row.entry)
	}
	return result, nil
}

// MarkSent отмечает успешную публикацию.
func (r *EventOutbox) MarkSent(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, "sent", nil)
}

// MarkFailed фиксирует окончательную ошибку, запись больше не выдаётся.
func (r *EventOutbox) MarkFailed(ctx context.Context, id string, cause error) error {
	return r.markStatus(ctx, id, "failed", cause)
}

func (r *EventOutbox) markStatus(ctx context.Context, id, status string, cause error) error {
	var lastError sql.NullString
	if cause != nil {
		lastError = sql.NullString{String: cause.Error(), Valid: true}
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(queryCtx, `
		UPDATE order_event_outbox
		SET status = $2,
		    attempt_count = attempt_count + 1,
		    last_error = COALESCE($3, last_error),
		    updated_at = $4
		WHERE id = $1
	`, id, status, lastError, r.now())
	if err != nil {
		return fmt.Errorf("mark order event %s as %s: %w", id, status, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for order event %s: %w", id, err)
	}
	if affected == 0 {
		return domain.ErrOutboxEntryNotFound
	}
	return nil
}

// Stats возвращает число pending-записей и время самой старой из них.
func (r *EventOutbox) Stats(ctx context.Context) (domain.OutboxStats, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	if err := r.db.QueryRowContext(queryCtx, `
		SELECT COUNT(*), MIN(enqueued_at)
		FROM order_event_outbox
		WHERE status = 'pending'
	`).Scan(&stats.PendingCount, &oldest); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("order event stats: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

var _ domain.EventOutbox = (*EventOutbox)(nil)
