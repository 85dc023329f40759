package rediscache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

type fakeCache struct {
	mu     sync.Mutex
	items  map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
	setCnt int
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCnt++
	if c.setErr != nil {
		return c.setErr
	}
	c.items[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Ping(context.Context) error { return nil }

type countingDirectory struct {
	mu        sync.Mutex
	customers map[string]domain.Customer
	calls     int
	err       error
}

func (d *countingDirectory) FindByID(_ context.Context, id string) (domain.Customer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return domain.Customer{}, d.err
	}
	c, ok := d.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return c, nil
}

func newDirectory() *countingDirectory {
	return &countingDirectory{customers: map[string]domain.Customer{
		"C1": {ID: "C1", Name: "Alice", Email: "alice@example.com", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	}}
}

func TestCustomerDirectory_CachesHit(t *testing.T) {
	next := newDirectory()
	cache := newFakeCache()
	dir := NewCustomerDirectory(next, cache, time.Minute, nil)

	first, err := dir.FindByID(context.Background(), "C1")
	require.NoError(t, err)
	second, err := dir.FindByID(context.Background(), "C1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "Alice", second.Name)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, time.Minute, cache.ttls["customer:C1"])
}

func TestCustomerDirectory_DoesNotCacheMiss(t *testing.T) {
	next := newDirectory()
	cache := newFakeCache()
	dir := NewCustomerDirectory(next, cache, 0, nil)

	for i := 0; i < 2; i++ {
		_, err := dir.FindByID(context.Background(), "C404")
		require.ErrorIs(t, err, domain.ErrCustomerNotFound)
	}
	assert.Equal(t, 2, next.calls)
	assert.Zero(t, cache.setCnt)
}

func TestCustomerDirectory_FallsBackOnCacheErrors(t *testing.T) {
	next := newDirectory()
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	dir := NewCustomerDirectory(next, cache, time.Minute, nil)

	customer, err := dir.FindByID(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, "C1", customer.ID)
	assert.Equal(t, 1, next.calls)
}

func TestCustomerDirectory_IgnoresCorruptedEntry(t *testing.T) {
	next := newDirectory()
	cache := newFakeCache()
	cache.items["customer:C1"] = []byte("{not json")
	dir := NewCustomerDirectory(next, cache, time.Minute, nil)

	customer, err := dir.FindByID(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", customer.Name)
	assert.Equal(t, 1, next.calls)
}

func TestCustomerDirectory_PropagatesDelegateError(t *testing.T) {
	boom := errors.New("db down")
	next := newDirectory()
	next.err = boom
	dir := NewCustomerDirectory(next, newFakeCache(), time.Minute, nil)

	_, err := dir.FindByID(context.Background(), "C1")
	assert.Same(t, boom, err)
}
