package grpcsvc

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// Placer оформляет заказ.
type Placer interface {
	Place(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
}

// OrderService реализует gRPC API поверх сервиса оформления заказов.
type OrderService struct {
	placer Placer
	orders domain.OrderReader
	logger *log.Entry
}

// NewOrderService конструирует сервис с зависимостями.
func NewOrderService(placer Placer, orders domain.OrderReader, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.New().WithField("component", "grpc-order-service")
	}
	return &OrderService{placer: placer, orders: orders, logger: logger}
}

// PlaceOrder проверяет запрос и оформляет заказ.
func (s *OrderService) PlaceOrder(ctx context.Context, msg *structpb.Struct) (*structpb.Struct, error) {
	req, err := DecodePlaceOrderRequest(msg)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if errs := req.Validate(); len(errs) > 0 {
		return nil, status.Error(codes.InvalidArgument, joinErrors(errs))
	}

	order, err := s.placer.Place(ctx, req)
	if err != nil {
		return nil, s.toStatus(err, "PlaceOrder")
	}

	resp, err := EncodeOrderResponse(order)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to encode order")
		return nil, status.Error(codes.Internal, "failed to encode order")
	}
	return resp, nil
}

// GetOrder возвращает сохранённый заказ.
func (s *OrderService) GetOrder(ctx context.Context, msg *structpb.Struct) (*structpb.Struct, error) {
	orderID, err := DecodeGetOrderRequest(msg)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if orderID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	if s.orders == nil {
		return nil, status.Error(codes.Unimplemented, "order lookup is not configured")
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, s.toStatus(err, "GetOrder")
	}

	resp, err := EncodeOrderResponse(order)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to encode order")
		return nil, status.Error(codes.Internal, "failed to encode order")
	}
	return resp, nil
}

// toStatus переводит доменную ошибку в gRPC статус. Отказы по данным клиента
// отдаются с исходным текстом, сбои хранилищ скрываются за Internal.
func (s *OrderService) toStatus(err error, operation string) error {
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrOrderConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.WithError(err).WithField("operation", operation).Error("request failed")
		return status.Error(codes.Internal, "internal error")
	}
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

var _ OrderPlacementServer = (*OrderService)(nil)
