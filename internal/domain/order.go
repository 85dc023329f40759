package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestedProduct одна строка входящего запроса: товар и желаемое количество.
type RequestedProduct struct {
	ID       string
	Quantity int32
}

// OrderRequest описывает запрос на оформление заказа. Живёт только в рамках вызова.
type OrderRequest struct {
	CustomerID string
	Products   []RequestedProduct
}

// Validate проверяет форму запроса и возвращает список замечаний.
// Ядро оформления эту проверку не вызывает: она выполняется на транспортном уровне.
func (r *OrderRequest) Validate() []error {
	var errs []error

	if r.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(r.Products) == 0 {
		errs = append(errs, ErrProductsRequired)
	}
	for _, p := range r.Products {
		if p.ID == "" {
			errs = append(errs, ErrProductIDRequired)
		}
		if p.Quantity <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
	}

	return errs
}

// ProductIDs возвращает уникальные идентификаторы товаров в порядке первого появления.
func (r *OrderRequest) ProductIDs() []string {
	seen := make(map[string]struct{}, len(r.Products))
	ids := make([]string, 0, len(r.Products))
	for _, p := range r.Products {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}
	return ids
}

// Customer запись клиента. Для оформления заказа важен только факт существования.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CatalogEntry снимок цены и остатка товара на момент чтения каталога.
type CatalogEntry struct {
	ID       string
	Price    decimal.Decimal
	Quantity int32
}

// QuantityAdjustment новый (после списания) остаток, который записывается в каталог.
type QuantityAdjustment struct {
	ID       string
	Quantity int32
}

// PricedLineItem позиция заказа с ценой, зафиксированной в момент проверки.
type PricedLineItem struct {
	ProductID string
	Quantity  int32
	Price     decimal.Decimal
}

// Total возвращает стоимость позиции: quantity * price.
func (l PricedLineItem) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt32(l.Quantity))
}

// NewOrder входные данные для OrderStore.Create.
type NewOrder struct {
	Customer Customer
	Products []PricedLineItem
}

// Order сохранённый заказ. ID и временные метки назначает OrderStore.
type Order struct {
	ID        string
	Customer  Customer
	Products  []PricedLineItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Total возвращает сумму заказа по всем позициям.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Products {
		total = total.Add(line.Total())
	}
	return total
}
