package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
)

func newOrderInput(customerID string) domain.NewOrder {
	return domain.NewOrder{
		Customer: domain.Customer{ID: customerID, Name: "Alice"},
		Products: []domain.PricedLineItem{
			{ProductID: "P1", Quantity: 3, Price: decimal.RequireFromString("10.00")},
		},
	}
}

func TestOrderStore_CreateGet(t *testing.T) {
	store := memory.NewOrderStore()

	created, err := store.Create(context.Background(), newOrderInput("C1"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected assigned id")
	}
	if created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("unexpected timestamps: %v %v", created.CreatedAt, created.UpdatedAt)
	}

	stored, err := store.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Customer.ID != "C1" || len(stored.Products) != 1 {
		t.Fatalf("unexpected stored order: %+v", stored)
	}
}

func TestOrderStore_GetNotFound(t *testing.T) {
	store := memory.NewOrderStore()

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderStore_LinesAreIsolated(t *testing.T) {
	store := memory.NewOrderStore()
	input := newOrderInput("C1")

	created, err := store.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	input.Products[0].Price = decimal.RequireFromString("99.00")
	created.Products[0].Quantity = 42

	stored, err := store.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !stored.Products[0].Price.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("stored price changed: %s", stored.Products[0].Price)
	}
	if stored.Products[0].Quantity != 3 {
		t.Fatalf("stored quantity changed: %d", stored.Products[0].Quantity)
	}
}

