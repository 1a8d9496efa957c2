package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
)

type clientCacheKey struct{}

// ClientCache memoizes client lookups for the lifetime of one request.
// Create it when the request starts and Clear it when the request ends.
type ClientCache struct {
	mu       sync.Mutex
	byID     map[int64]*entity.Client
	byNumber map[string]*entity.Client
}

// NewClientCache creates an empty cache
func NewClientCache() *ClientCache {
	return &ClientCache{
		byID:     make(map[int64]*entity.Client),
		byNumber: make(map[string]*entity.Client),
	}
}

// WithClientCache attaches cache to ctx
func WithClientCache(ctx context.Context, cache *ClientCache) context.Context {
	return context.WithValue(ctx, clientCacheKey{}, cache)
}

// ClientCacheFrom returns the cache attached to ctx, or nil
func ClientCacheFrom(ctx context.Context) *ClientCache {
	cache, _ := ctx.Value(clientCacheKey{}).(*ClientCache)
	return cache
}

func (c *ClientCache) put(client *entity.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[client.ID] = client
	if client.ClientNumber != "" {
		c.byNumber[client.ClientNumber] = client
	}
}

func (c *ClientCache) getByID(id int64) (*entity.Client, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	client, ok := c.byID[id]
	return client, ok
}

func (c *ClientCache) getByNumber(number string) (*entity.Client, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	client, ok := c.byNumber[number]
	return client, ok
}

// Len returns the number of cached clients
func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

// Clear drops every cached entry
func (c *ClientCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = make(map[int64]*entity.Client)
	c.byNumber = make(map[string]*entity.Client)
}

type clientDirectoryImpl struct {
	clientRepo port.ClientRepository
}

// NewClientDirectory returns a ClientDirectory backed by the client
// repository. Lookups go through the ClientCache attached to the context,
// when there is one.
func NewClientDirectory(clientRepo port.ClientRepository) port.ClientDirectory {
	return &clientDirectoryImpl{clientRepo: clientRepo}
}

func (d *clientDirectoryImpl) FromPrimary(ctx context.Context, id int64) (*entity.Client, error) {
	cache := ClientCacheFrom(ctx)
	if cache != nil {
		if client, ok := cache.getByID(id); ok {
			return client, nil
		}
	}

	client, err := d.clientRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: id %d", entity.ErrClientNotFound, id)
	}
	if cache != nil {
		cache.put(client)
	}
	return client, nil
}

func (d *clientDirectoryImpl) FromClientNumber(ctx context.Context, number string) (*entity.Client, error) {
	cache := ClientCacheFrom(ctx)
	if cache != nil {
		if client, ok := cache.getByNumber(number); ok {
			return client, nil
		}
	}

	client, err := d.clientRepo.GetByClientNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: number %s", entity.ErrClientNotFound, number)
	}
	if cache != nil {
		cache.put(client)
	}
	return client, nil
}

func (d *clientDirectoryImpl) List(ctx context.Context) ([]*entity.Client, error) {
	clients, err := d.clientRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	if cache := ClientCacheFrom(ctx); cache != nil {
		for _, c := range clients {
			cache.put(c)
		}
	}
	return clients, nil
}
