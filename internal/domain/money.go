package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceScale число знаков после запятой в цене каталога (NUMERIC(14, 2)).
const PriceScale = 2

// ErrPriceInvalid цена отрицательная или точнее PriceScale.
var ErrPriceInvalid = errors.New("invalid price")

// ValidatePrice проверяет, что цену можно сохранить в каталоге без округления.
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: %s must be non-negative", ErrPriceInvalid, price)
	}
	if !price.Equal(price.Truncate(PriceScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrPriceInvalid, price, PriceScale)
	}
	return nil
}

// FormatMoney печатает сумму с двумя знаками, а более точное значение без округления.
func FormatMoney(amount decimal.Decimal) string {
	if amount.Equal(amount.Truncate(PriceScale)) {
		return amount.StringFixed(PriceScale)
	}
	return amount.String()
}
