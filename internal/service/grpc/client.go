package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// Client типизированный клиент ordercore.v1.OrderPlacement.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient создаёт клиента поверх соединения.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// PlaceOrder вызывает PlaceOrder и разбирает ответ.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest, opts ...grpc.CallOption) (domain.Order, error) {
	in, err := EncodePlaceOrderRequest(req)
	if err != nil {
		return domain.Order{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PlaceOrderFullMethod, in, out, opts...); err != nil {
		return domain.Order{}, err
	}
	return DecodeOrderResponse(out)
}

// GetOrder вызывает GetOrder и разбирает ответ.
func (c *Client) GetOrder(ctx context.Context, orderID string, opts ...grpc.CallOption) (domain.Order, error) {
	in, err := EncodeGetOrderRequest(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetOrderFullMethod, in, out, opts...); err != nil {
		return domain.Order{}, err
	}
	return DecodeOrderResponse(out)
}
