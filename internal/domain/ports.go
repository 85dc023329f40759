package domain

import "context"

// CustomerDirectory находит клиента по идентификатору.
type CustomerDirectory interface {
	// FindByID возвращает клиента или ErrCustomerNotFound, если его нет.
	FindByID(ctx context.Context, id string) (Customer, error)
}

// ProductCatalog читает цены и остатки и записывает новые остатки.
type ProductCatalog interface {
	// FindAllByID возвращает записи для известных id. Неизвестные id просто отсутствуют в ответе.
	FindAllByID(ctx context.Context, ids []string) ([]CatalogEntry, error)
	// UpdateQuantity записывает абсолютные остатки одним пакетом.
	UpdateQuantity(ctx context.Context, adjustments []QuantityAdjustment) error
}

// OrderStore сохраняет сформированный заказ.
type OrderStore interface {
	// Create сохраняет заказ и возвращает запись с назначенными ID и временем.
	Create(ctx context.Context, order NewOrder) (Order, error)
}

// OrderReader читает сохранённые заказы.
type OrderReader interface {
	// Get возвращает заказ или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
}

// OrderEventPublisher публикует событие об оформленном заказе.
type OrderEventPublisher interface {
	PublishOrderPlaced(order Order) error
}
