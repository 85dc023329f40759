package grpcsvc

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// Поля сообщений.
const (
	fieldCustomerID = "customer_id"
	fieldProducts   = "products"
	fieldID         = "id"
	fieldQuantity   = "quantity"
	fieldOrderID    = "order_id"
	fieldOrder      = "order"
	fieldProductID  = "product_id"
	fieldPrice      = "price"
	fieldTotal      = "total"
	fieldCreatedAt  = "created_at"
	fieldUpdatedAt  = "updated_at"
)

var errMalformed = errors.New("malformed message")

// EncodePlaceOrderRequest собирает запрос PlaceOrder.
func EncodePlaceOrderRequest(req domain.OrderRequest) (*structpb.Struct, error) {
	products := make([]any, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, map[string]any{
			fieldID:       p.ID,
			fieldQuantity: p.Quantity,
		})
	}
	return structpb.NewStruct(map[string]any{
		fieldCustomerID: req.CustomerID,
		fieldProducts:   products,
	})
}

// DecodePlaceOrderRequest разбирает запрос PlaceOrder. Проверяется только форма
// сообщения; содержательная проверка делается через OrderRequest.Validate.
func DecodePlaceOrderRequest(msg *structpb.Struct) (domain.OrderRequest, error) {
	if msg == nil {
		return domain.OrderRequest{}, fmt.Errorf("%w: request is required", errMalformed)
	}

	customerID, err := stringField(msg, fieldCustomerID)
	if err != nil {
		return domain.OrderRequest{}, err
	}

	req := domain.OrderRequest{CustomerID: customerID}

	raw, ok := msg.GetFields()[fieldProducts]
	if !ok {
		return req, nil
	}
	list, ok := raw.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return domain.OrderRequest{}, fmt.Errorf("%w: %s must be a list", errMalformed, fieldProducts)
	}

	for i, item := range list.ListValue.GetValues() {
		line := item.GetStructValue()
		if line == nil {
			return domain.OrderRequest{}, fmt.Errorf("%w: %s[%d] must be an object", errMalformed, fieldProducts, i)
		}
		id, err := stringField(line, fieldID)
		if err != nil {
			return domain.OrderRequest{}, fmt.Errorf("%s[%d]: %w", fieldProducts, i, err)
		}
		quantity, err := int32Field(line, fieldQuantity)
		if err != nil {
			return domain.OrderRequest{}, fmt.Errorf("%s[%d]: %w", fieldProducts, i, err)
		}
		req.Products = append(req.Products, domain.RequestedProduct{ID: id, Quantity: quantity})
	}

	return req, nil
}

// EncodeGetOrderRequest собирает запрос GetOrder.
func EncodeGetOrderRequest(orderID string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{fieldOrderID: orderID})
}

// DecodeGetOrderRequest возвращает order_id из запроса GetOrder.
func DecodeGetOrderRequest(msg *structpb.Struct) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("%w: request is required", errMalformed)
	}
	return stringField(msg, fieldOrderID)
}

// EncodeOrderResponse кладёт заказ в поле order ответа. Деньги передаются строками.
func EncodeOrderResponse(order domain.Order) (*structpb.Struct, error) {
	products := make([]any, 0, len(order.Products))
	for _, line := range order.Products {
		products = append(products, map[string]any{
			fieldProductID: line.ProductID,
			fieldQuantity:  line.Quantity,
			fieldPrice:     domain.FormatMoney(line.Price),
		})
	}

	return structpb.NewStruct(map[string]any{
		fieldOrder: map[string]any{
			fieldID:         order.ID,
			fieldCustomerID: order.Customer.ID,
			fieldProducts:   products,
			fieldTotal:      domain.FormatMoney(order.Total()),
			fieldCreatedAt:  order.CreatedAt.UTC().Format(time.RFC3339Nano),
			fieldUpdatedAt:  order.UpdatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
}

// DecodeOrderResponse разбирает ответ PlaceOrder/GetOrder обратно в заказ.
// У клиента заполняется только Customer.ID.
func DecodeOrderResponse(msg *structpb.Struct) (domain.Order, error) {
	body := msg.GetFields()[fieldOrder].GetStructValue()
	if body == nil {
		return domain.Order{}, fmt.Errorf("%w: %s is required", errMalformed, fieldOrder)
	}

	var (
		order domain.Order
		err   error
	)
	if order.ID, err = stringField(body, fieldID); err != nil {
		return domain.Order{}, err
	}
	if order.Customer.ID, err = stringField(body, fieldCustomerID); err != nil {
		return domain.Order{}, err
	}
	if order.CreatedAt, err = timeField(body, fieldCreatedAt); err != nil {
		return domain.Order{}, err
	}
	if order.UpdatedAt, err = timeField(body, fieldUpdatedAt); err != nil {
		return domain.Order{}, err
	}

	for i, item := range body.GetFields()[fieldProducts].GetListValue().GetValues() {
		line := item.GetStructValue()
		if line == nil {
			return domain.Order{}, fmt.Errorf("%w: %s[%d] must be an object", errMalformed, fieldProducts, i)
		}
		var priced domain.PricedLineItem
		if priced.ProductID, err = stringField(line, fieldProductID); err != nil {
			return domain.Order{}, err
		}
		if priced.Quantity, err = int32Field(line, fieldQuantity); err != nil {
			return domain.Order{}, err
		}
		price, err := stringField(line, fieldPrice)
		if err != nil {
			return domain.Order{}, err
		}
		if priced.Price, err = decimal.NewFromString(price); err != nil {
			return domain.Order{}, fmt.Errorf("%w: %s: %v", errMalformed, fieldPrice, err)
		}
		order.Products = append(order.Products, priced)
	}

	return order, nil
}

// stringField возвращает строковое поле; отсутствующее поле даёт пустую строку.
func stringField(msg *structpb.Struct, name string) (string, error) {
	v, ok := msg.GetFields()[name]
	if !ok {
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", errMalformed, name)
	}
	return s.StringValue, nil
}

// int32Field возвращает целое поле; отсутствующее поле даёт 0.
func int32Field(msg *structpb.Struct, name string) (int32, error) {
	v, ok := msg.GetFields()[name]
	if !ok {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", errMalformed, name)
	}
	f := n.NumberValue
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be a 32-bit integer", errMalformed, name)
	}
	return int32(f), nil
}

func timeField(msg *structpb.Struct, name string) (time.Time, error) {
	s, err := stringField(msg, name)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", errMalformed, name, err)
	}
	return t, nil
}
