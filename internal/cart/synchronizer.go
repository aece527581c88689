// Package cart keeps each session's cart in step with the backend. Every
// mutation computes the complete item list locally, replaces the remote cart
// with it in one request and adopts the server's subtotal.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Backend is the part of the backend API the synchronizer needs.
type Backend interface {
	Cart(ctx context.Context, sessionID string) (domain.Cart, error)
	ReplaceCart(ctx context.Context, sessionID string, items []domain.CartItem) (backend.ReplaceResult, error)
}

type Synchronizer struct {
	backend Backend
	store   Store
	log     *zap.Logger
	locks   *keyedMutex
	sfg     singleflight.Group // collapses concurrent mirror misses in Load
}

func NewSynchronizer(b Backend, store Store, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{
		backend: b,
		store:   store,
		log:     log,
		locks:   newKeyedMutex(),
	}
}

// sharedFetchTimeout bounds a backend fetch shared by several callers. The
// fetch outlives any single caller, so it cannot inherit their deadlines.
const sharedFetchTimeout = 10 * time.Second

// Load returns the mirrored cart, fetching it from the backend on a miss.
// A failed fetch yields an empty cart, which is only fit for display.
func (s *Synchronizer) Load(ctx context.Context, sid session.ID) domain.Cart {
	if c, ok := s.mirrored(ctx, sid); ok {
		return c
	}

	ch := s.sfg.DoChan(sid.String(), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return s.fetchAndMirror(fetchCtx, sid)
	})

	var (
		c   domain.Cart
		err error
	)
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			c = res.Val.(domain.Cart)
		}
		err = res.Err
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Warn("load cart failed, showing empty cart", zap.String("session_id", sid.String()), zap.Error(err))
		}
		return domain.EmptyCart(sid.String())
	}
	return c
}

func (s *Synchronizer) mirrored(ctx context.Context, sid session.ID) (domain.Cart, bool) {
	c, err := s.store.Get(ctx, sid.String())
	if err == nil {
		return *c, true
	}
	if !errors.Is(err, ErrMirrorMiss) {
		s.log.Warn("cart mirror get failed", zap.String("session_id", sid.String()), zap.Error(err))
	}
	return domain.Cart{}, false
}

// fetchAndMirror mirrors the remote cart unless a mutation stored a state
// while the fetch was in flight; that state wins.
func (s *Synchronizer) fetchAndMirror(ctx context.Context, sid session.ID) (domain.Cart, error) {
	remote, err := s.backend.Cart(ctx, sid.String())
	if err != nil {
		return domain.Cart{}, err
	}
	remote.SessionID = sid.String()

	unlock := s.locks.Lock(sid.String())
	defer unlock()
	if current, ok := s.mirrored(ctx, sid); ok {
		return current, nil
	}
	if errSet := s.store.Set(ctx, sid.String(), &remote); errSet != nil {
		s.log.Warn("cart mirror set failed", zap.String("session_id", sid.String()), zap.Error(errSet))
	}
	return remote, nil
}

// loadForWrite is Load for callers holding the session lock. A fetch failure
// is returned rather than replaced by an empty cart, since the result becomes
// the base of a full replace.
func (s *Synchronizer) loadForWrite(ctx context.Context, sid session.ID) (domain.Cart, error) {
	if c, ok := s.mirrored(ctx, sid); ok {
		return c, nil
	}
	remote, err := s.backend.Cart(ctx, sid.String())
	if err != nil {
		return domain.Cart{}, err
	}
	remote.SessionID = sid.String()
	return remote, nil
}

// Add puts one more unit of p in the cart.
func (s *Synchronizer) Add(ctx context.Context, sid session.ID, p domain.Product) (domain.Cart, error) {
	return s.mutate(ctx, sid, func(items []domain.CartItem) []domain.CartItem {
		return AddLine(items, p)
	})
}

// SetQuantity sets a line's quantity, clamped to at least one.
func (s *Synchronizer) SetQuantity(ctx context.Context, sid session.ID, productID string, qty int) (domain.Cart, error) {
	return s.mutate(ctx, sid, func(items []domain.CartItem) []domain.CartItem {
		return SetLineQuantity(items, productID, qty)
	})
}

func (s *Synchronizer) Remove(ctx context.Context, sid session.ID, productID string) (domain.Cart, error) {
	return s.mutate(ctx, sid, func(items []domain.CartItem) []domain.CartItem {
		return RemoveLine(items, productID)
	})
}

// Clear resets the mirror to an empty cart without contacting the backend.
func (s *Synchronizer) Clear(ctx context.Context, sid session.ID) error {
	unlock := s.locks.Lock(sid.String())
	defer unlock()
	return s.clearLocked(ctx, sid)
}

func (s *Synchronizer) clearLocked(ctx context.Context, sid session.ID) error {
	next := domain.EmptyCart(sid.String())
	if current, err := s.store.Get(ctx, sid.String()); err == nil {
		next.Version = current.Version + 1
	}
	if err := s.store.Set(ctx, sid.String(), &next); err != nil {
		return fmt.Errorf("clear cart mirror: %w", err)
	}
	return nil
}

// Locked is a session cart whose lock is held for the duration of a
// WithLock callback. Mutations of the same session wait until it returns.
type Locked interface {
	Load(ctx context.Context) (domain.Cart, error)
	Clear(ctx context.Context) error
}

type lockedCart struct {
	s   *Synchronizer
	sid session.ID
}

func (l lockedCart) Load(ctx context.Context) (domain.Cart, error) {
	return l.s.loadForWrite(ctx, l.sid)
}

func (l lockedCart) Clear(ctx context.Context) error {
	return l.s.clearLocked(ctx, l.sid)
}

// WithLock runs fn while holding the session's cart lock.
func (s *Synchronizer) WithLock(sid session.ID, fn func(Locked) error) error {
	unlock := s.locks.Lock(sid.String())
	defer unlock()
	return fn(lockedCart{s: s, sid: sid})
}

// Forget drops the mirror so the next Load refetches from the backend.
func (s *Synchronizer) Forget(ctx context.Context, sid session.ID) error {
	unlock := s.locks.Lock(sid.String())
	defer unlock()

	if err := s.store.Delete(ctx, sid.String()); err != nil {
		return fmt.Errorf("forget cart mirror: %w", err)
	}
	return nil
}

// mutate serializes read-modify-replace cycles per session. On failure the
// mirror is left untouched. A failed load sends nothing; a failed replace
// returns the previous state with the error.
func (s *Synchronizer) mutate(ctx context.Context, sid session.ID, apply func([]domain.CartItem) []domain.CartItem) (domain.Cart, error) {
	unlock := s.locks.Lock(sid.String())
	defer unlock()

	current, err := s.loadForWrite(ctx, sid)
	if err != nil {
		s.log.Error("load cart for update failed", zap.String("session_id", sid.String()), zap.Error(err))
		return domain.EmptyCart(sid.String()), fmt.Errorf("load cart: %w", err)
	}
	items := apply(current.Items)

	res, err := s.backend.ReplaceCart(ctx, sid.String(), items)
	if err != nil {
		s.log.Error("replace cart failed", zap.String("session_id", sid.String()), zap.Error(err))
		return current, fmt.Errorf("replace cart: %w", err)
	}

	next := domain.Cart{
		SessionID: sid.String(),
		Items:     items,
		Subtotal:  res.Subtotal,
		Version:   current.Version + 1,
	}
	if err := s.store.Set(ctx, sid.String(), &next); err != nil {
		s.log.Warn("cart mirror set failed", zap.String("session_id", sid.String()), zap.Error(err))
	}
	return next, nil
}
