package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrMirrorMiss  = errors.New("cart mirror miss")
	ErrStaleMirror = errors.New("cart mirror holds a newer version")
)

// Store holds the local mirror of each session's cart. Set refuses to
// replace a mirror whose Version is higher than the incoming one.
type Store interface {
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)
	Set(ctx context.Context, sessionID string, cart *domain.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]domain.Cart)}
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[sessionID]
	if !ok {
		return nil, ErrMirrorMiss
	}
	c.Items = append([]domain.CartItem{}, c.Items...)
	return &c, nil
}

func (m *MemoryStore) Set(_ context.Context, sessionID string, cart *domain.Cart) error {
	c := *cart
	c.Items = append([]domain.CartItem{}, cart.Items...)
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.carts[sessionID]; ok && current.Version > c.Version {
		return fmt.Errorf("%w: version %d", ErrStaleMirror, c.Version)
	}
	m.carts[sessionID] = c
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	return nil
}
