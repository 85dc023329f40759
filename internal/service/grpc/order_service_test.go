package grpcsvc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	grpcsvc "github.com/vladislavdragonenkov/ordercore/internal/service/grpc"
	"github.com/vladislavdragonenkov/ordercore/internal/service/placement"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
)

const bufSize = 1024 * 1024

type testEnv struct {
	conn    *grpc.ClientConn
	client  *grpcsvc.Client
	catalog *memory.ProductCatalog
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	logger := loggerForTests()

	customers := memory.NewCustomerDirectory()
	customers.Put(domain.Customer{ID: "C1", Name: "Alice"})
	catalog := memory.NewProductCatalog()
	catalog.Put(domain.CatalogEntry{ID: "P1", Price: decimal.RequireFromString("10.00"), Quantity: 5})
	catalog.Put(domain.CatalogEntry{ID: "P3", Price: decimal.RequireFromString("2.50"), Quantity: 100})
	orders := memory.NewOrderStore()

	placer := placement.NewService(customers, catalog, orders, placement.WithLogger(logger))
	service := grpcsvc.NewOrderService(placer, orders, logger)

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	grpcsvc.RegisterOrderPlacementServer(server, service)

	go func() {
		if err := server.Serve(listener); err != nil {
			logger.WithError(err).Error("grpc serve failed")
		}
	}()

	dialer := func(context.Context, string) (net.Conn, error) {
		return listener.Dial()
	}

	//nolint:staticcheck // grpc.Dial is required for bufconn testing
	conn, err := grpc.Dial("bufnet", grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})

	return &testEnv{conn: conn, client: grpcsvc.NewClient(conn), catalog: catalog}
}

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPlaceOrder_Success(t *testing.T) {
	env := newTestServer(t)
	ctx := testCtx(t)

	order, err := env.client.PlaceOrder(ctx, domain.OrderRequest{
		CustomerID: "C1",
		Products: []domain.RequestedProduct{
			{ID: "P1", Quantity: 3},
			{ID: "P3", Quantity: 4},
		},
	})
	require.NoError(t, err)

	require.NotEmpty(t, order.ID)
	assert.Equal(t, "C1", order.Customer.ID)
	require.Len(t, order.Products, 2)
	assert.True(t, order.Products[0].Price.Equal(decimal.RequireFromString("10")))
	assert.True(t, order.Total().Equal(decimal.RequireFromString("40")))
	assert.False(t, order.CreatedAt.IsZero())

	entry, ok := env.catalog.Get("P1")
	require.True(t, ok)
	assert.Equal(t, int32(2), entry.Quantity)
}

func TestPlaceOrder_RejectionsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		name    string
		req     domain.OrderRequest
		code    codes.Code
		message string
	}{
		{
			name:    "unknown customer",
			req:     domain.OrderRequest{CustomerID: "C404", Products: []domain.RequestedProduct{{ID: "P1", Quantity: 1}}},
			code:    codes.NotFound,
			message: "customer not found",
		},
		{
			name:    "unknown product",
			req:     domain.OrderRequest{CustomerID: "C1", Products: []domain.RequestedProduct{{ID: "P2", Quantity: 1}}},
			code:    codes.NotFound,
			message: "product not found: P2",
		},
		{
			name:    "insufficient stock",
			req:     domain.OrderRequest{CustomerID: "C1", Products: []domain.RequestedProduct{{ID: "P1", Quantity: 7}}},
			code:    codes.FailedPrecondition,
			message: "requested 7, available 5",
		},
		{
			name:    "empty products",
			req:     domain.OrderRequest{CustomerID: "C1"},
			code:    codes.InvalidArgument,
			message: domain.ErrProductsRequired.Error(),
		},
		{
			name:    "zero quantity",
			req:     domain.OrderRequest{CustomerID: "C1", Products: []domain.RequestedProduct{{ID: "P1", Quantity: 0}}},
			code:    codes.InvalidArgument,
			message: domain.ErrQuantityInvalid.Error(),
		},
	}

	env := newTestServer(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.client.PlaceOrder(testCtx(t), tc.req)
			require.Error(t, err)

			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tc.code, st.Code())
			assert.Contains(t, st.Message(), tc.message)
		})
	}

	entry, ok := env.catalog.Get("P1")
	require.True(t, ok)
	assert.Equal(t, int32(5), entry.Quantity, "rejected requests must not touch stock")
}

func TestPlaceOrder_MalformedMessage(t *testing.T) {
	env := newTestServer(t)

	in, err := structpb.NewStruct(map[string]any{
		"customer_id": "C1",
		"products":    []any{map[string]any{"id": "P1", "quantity": 1.5}},
	})
	require.NoError(t, err)

	out := new(structpb.Struct)
	err = env.conn.Invoke(testCtx(t), grpcsvc.PlaceOrderFullMethod, in, out)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGetOrder(t *testing.T) {
	env := newTestServer(t)
	ctx := testCtx(t)

	placed, err := env.client.PlaceOrder(ctx, domain.OrderRequest{
		CustomerID: "C1",
		Products:   []domain.RequestedProduct{{ID: "P3", Quantity: 2}},
	})
	require.NoError(t, err)

	loaded, err := env.client.GetOrder(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.ID, loaded.ID)
	assert.True(t, placed.CreatedAt.Equal(loaded.CreatedAt))
	require.Len(t, loaded.Products, 1)
	assert.Equal(t, "P3", loaded.Products[0].ProductID)
	assert.True(t, loaded.Products[0].Price.Equal(decimal.RequireFromString("2.50")))

	_, err = env.client.GetOrder(ctx, "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = env.client.GetOrder(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
