package rediscache

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

const defaultCustomerTTL = 5 * time.Minute

// CustomerDirectory кэширует найденных клиентов поверх другого справочника.
// Отсутствие клиента не кэшируется. Ошибки redis не мешают чтению: запрос
// уходит в исходный справочник.
type CustomerDirectory struct {
	next   domain.CustomerDirectory
	cache  Cache
	ttl    time.Duration
	logger *log.Entry
}

// NewCustomerDirectory создаёт кэширующий справочник. ttl<=0 заменяется значением по умолчанию.
func NewCustomerDirectory(next domain.CustomerDirectory, cache Cache, ttl time.Duration, logger *log.Entry) *CustomerDirectory {
	if ttl <= 0 {
		ttl = defaultCustomerTTL
	}
	if logger == nil {
		logger = log.New().WithField("component", "customer-cache")
	}
	return &CustomerDirectory{next: next, cache: cache, ttl: ttl, logger: logger}
}

type cachedCustomer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FindByID возвращает клиента из кэша или из исходного справочника.
func (d *CustomerDirectory) FindByID(ctx context.Context, id string) (domain.Customer, error) {
	key := "customer:" + id

	raw, ok, err := d.cache.Get(ctx, key)
	switch {
	case err != nil:
		d.logger.WithError(err).WithField("customer_id", id).Warn("customer cache read failed")
	case ok:
		var cached cachedCustomer
		if err := json.Unmarshal(raw, &cached); err == nil {
			return domain.Customer(cached), nil
		}
		d.logger.WithField("customer_id", id).Warn("customer cache entry is corrupted")
	}

	customer, err := d.next.FindByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	payload, err := json.Marshal(cachedCustomer(customer))
	if err != nil {
		return customer, nil
	}
	if err := d.cache.Set(ctx, key, payload, d.ttl); err != nil {
		d.logger.WithError(err).WithField("customer_id", id).Warn("customer cache write failed")
	}
	return customer, nil
}

var _ domain.CustomerDirectory = (*CustomerDirectory)(nil)
