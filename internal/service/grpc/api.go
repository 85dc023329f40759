package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName полное имя gRPC-сервиса оформления заказов.
const ServiceName = "ordercore.v1.OrderPlacement"

const (
	PlaceOrderFullMethod = "/" + ServiceName + "/PlaceOrder"
	GetOrderFullMethod   = "/" + ServiceName + "/GetOrder"
)

// OrderPlacementServer серверная сторона ordercore.v1.OrderPlacement.
// Сообщения передаются как google.protobuf.Struct.
type OrderPlacementServer interface {
	PlaceOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterOrderPlacementServer регистрирует srv на s.
func RegisterOrderPlacementServer(s grpc.ServiceRegistrar, srv OrderPlacementServer) {
	s.RegisterService(&OrderPlacementServiceDesc, srv)
}

// OrderPlacementServiceDesc описание сервиса для grpc.Server.
var OrderPlacementServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderPlacementServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: placeOrderHandler},
		{MethodName: "GetOrder", Handler: getOrderHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ordercore/v1/order_placement.proto",
}

func placeOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderPlacementServer).PlaceOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PlaceOrderFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderPlacementServer).PlaceOrder(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderPlacementServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetOrderFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderPlacementServer).GetOrder(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
