package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка пустого списка товаров.
	ErrProductsRequired = errors.New("order must contain at least one product")
	// Ошибка отсутствующего идентификатора товара в строке запроса.
	ErrProductIDRequired = errors.New("product id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrQuantityInvalid = errors.New("product quantity must be greater than zero")

	// ErrCustomerNotFound клиент с указанным идентификатором не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrProductNotFound запрошенного товара нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock запрошенное количество превышает остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderConflict заказ с таким ID уже существует.
	ErrOrderConflict = errors.New("order already exists")
)

// ProductError описывает отказ по конкретной строке запроса.
// Err всегда один из ErrProductNotFound или ErrInsufficientStock.
type ProductError struct {
	Err       error
	ProductID string
	// Requested суммарное количество по всем строкам товара.
	Requested int64
	Available int32
}

func (e *ProductError) Error() string {
	if errors.Is(e.Err, ErrInsufficientStock) {
		return fmt.Sprintf("%s: product %s requested %d, available %d", e.Err, e.ProductID, e.Requested, e.Available)
	}
	return fmt.Sprintf("%s: %s", e.Err, e.ProductID)
}

func (e *ProductError) Unwrap() error {
	return e.Err
}

// IsRejection сообщает, является ли ошибка отказом по входным данным клиента
// (а не сбоем хранилища).
func IsRejection(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrInsufficientStock)
}
