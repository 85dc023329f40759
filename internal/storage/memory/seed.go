package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

// Seed описывает начальные данные для in-memory хранилищ.
type Seed struct {
	Customers []SeedCustomer `json:"customers"`
	Products  []SeedProduct  `json:"products"`
}

// SeedCustomer клиент в seed-файле.
type SeedCustomer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SeedProduct товар в seed-файле. Цена принимается строкой или числом.
type SeedProduct struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int32           `json:"quantity"`
}

// DecodeSeed читает seed в формате JSON и проверяет значения.
func DecodeSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}

	for i, c := range seed.Customers {
		if c.ID == "" {
			return Seed{}, fmt.Errorf("customers[%d]: id is required", i)
		}
	}
	for i, p := range seed.Products {
		if p.ID == "" {
			return Seed{}, fmt.Errorf("products[%d]: id is required", i)
		}
		if err := domain.ValidatePrice(p.Price); err != nil {
			return Seed{}, fmt.Errorf("products[%d]: %w", i, err)
		}
		if p.Quantity < 0 {
			return Seed{}, fmt.Errorf("products[%d]: quantity must be non-negative", i)
		}
	}

	return seed, nil
}

// LoadSeedFile читает seed из файла.
func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return DecodeSeed(f)
}

// Apply записывает seed в справочник клиентов и каталог.
func (s Seed) Apply(customers *CustomerDirectory, catalog *ProductCatalog) {
	now := time.Now().UTC()
	for _, c := range s.Customers {
		customers.Put(domain.Customer{
			ID:        c.ID,
			Name:      c.Name,
			Email:     c.Email,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	for _, p := range s.Products {
		catalog.Put(domain.CatalogEntry{
			ID:       p.ID,
			Price:    p.Price,
			Quantity: p.Quantity,
		})
	}
}
