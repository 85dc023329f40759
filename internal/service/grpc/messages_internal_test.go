package grpcsvc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

func TestDecodePlaceOrderRequest(t *testing.T) {
	msg, err := structpb.NewStruct(map[string]any{
		"customer_id": "C1",
		"products": []any{
			map[string]any{"id": "P1", "quantity": 3},
			map[string]any{"id": "P1", "quantity": 2},
		},
	})
	require.NoError(t, err)

	req, err := DecodePlaceOrderRequest(msg)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderRequest{
		CustomerID: "C1",
		Products: []domain.RequestedProduct{
			{ID: "P1", Quantity: 3},
			{ID: "P1", Quantity: 2},
		},
	}, req)
}

func TestDecodePlaceOrderRequest_Malformed(t *testing.T) {
	cases := map[string]map[string]any{
		"customer id not string": {"customer_id": 1},
		"products not list":      {"customer_id": "C1", "products": "P1"},
		"line not object":        {"customer_id": "C1", "products": []any{"P1"}},
		"fractional quantity":    {"customer_id": "C1", "products": []any{map[string]any{"id": "P1", "quantity": 0.5}}},
		"quantity overflow":      {"customer_id": "C1", "products": []any{map[string]any{"id": "P1", "quantity": 1e12}}},
		"quantity as string":     {"customer_id": "C1", "products": []any{map[string]any{"id": "P1", "quantity": "1"}}},
	}

	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			msg, err := structpb.NewStruct(fields)
			require.NoError(t, err)

			_, err = DecodePlaceOrderRequest(msg)
			assert.ErrorIs(t, err, errMalformed)
		})
	}

	_, err := DecodePlaceOrderRequest(nil)
	assert.ErrorIs(t, err, errMalformed)
}

func TestOrderResponseRoundTrip(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC)
	order := domain.Order{
		ID:       "order-1",
		Customer: domain.Customer{ID: "C1", Name: "Alice"},
		Products: []domain.PricedLineItem{
			{ProductID: "P1", Quantity: 3, Price: decimal.RequireFromString("10")},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}

	msg, err := EncodeOrderResponse(order)
	require.NoError(t, err)
	body := msg.GetFields()["order"].GetStructValue()
	assert.Equal(t, "10.00", body.GetFields()["products"].GetListValue().GetValues()[0].GetStructValue().GetFields()["price"].GetStringValue())
	assert.Equal(t, "30.00", body.GetFields()["total"].GetStringValue())

	decoded, err := DecodeOrderResponse(msg)
	require.NoError(t, err)
	assert.Equal(t, "order-1", decoded.ID)
	assert.Equal(t, "C1", decoded.Customer.ID)
	assert.Empty(t, decoded.Customer.Name)
	assert.True(t, created.Equal(decoded.CreatedAt))
	assert.True(t, decoded.Products[0].Price.Equal(order.Products[0].Price))

	_, err = DecodeOrderResponse(&structpb.Struct{})
	assert.ErrorIs(t, err, errMalformed)
}

func TestToStatus(t *testing.T) {
	svc := NewOrderService(nil, nil, log.New().WithField("component", "test"))

	cases := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("%w: C1", domain.ErrCustomerNotFound), codes.NotFound},
		{&domain.ProductError{Err: domain.ErrProductNotFound, ProductID: "P1"}, codes.NotFound},
		{&domain.ProductError{Err: domain.ErrInsufficientStock, ProductID: "P1", Requested: 2, Available: 1}, codes.FailedPrecondition},
		{domain.ErrOrderNotFound, codes.NotFound},
		{domain.ErrOrderConflict, codes.AlreadyExists},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("connection reset"), codes.Internal},
	}

	for _, tc := range cases {
		st, ok := status.FromError(svc.toStatus(tc.err, "test"))
		require.True(t, ok)
		assert.Equal(t, tc.code, st.Code(), tc.err.Error())
	}

	st, _ := status.FromError(svc.toStatus(errors.New("password=secret"), "test"))
	assert.NotContains(t, st.Message(), "secret")
}

func TestGetOrder_WithoutReader(t *testing.T) {
	svc := NewOrderService(nil, nil, nil)
	msg, err := EncodeGetOrderRequest("order-1")
	require.NoError(t, err)

	_, err = svc.GetOrder(context.Background(), msg)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
