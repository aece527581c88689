// Package session owns the shopper's session identifier: a random token
// generated once, persisted by a Store and reused on every later visit.
//
// The identifier is resolved once at the edge of the program (CLI start,
// per-request middleware) and passed explicitly to whatever needs it.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("session id not found")
	ErrInvalid  = errors.New("invalid session id")
)

// ID is an opaque session identifier.
type ID string

func (id ID) String() string {
	return string(id)
}

// New generates a fresh random identifier.
func New() ID {
	return ID(uuid.NewString())
}

// Parse validates a persisted identifier.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return ID(u.String()), nil
}

// Store persists a single identifier.
type Store interface {
	Load() (ID, error)
	Save(ID) error
}

// Resolve returns the stored identifier, generating and saving a new one on
// first use. A stored value that does not parse is replaced.
func Resolve(store Store) (ID, error) {
	id, err := store.Load()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalid) {
		return "", fmt.Errorf("load session id: %w", err)
	}

	id = New()
	if err := store.Save(id); err != nil {
		return "", fmt.Errorf("save session id: %w", err)
	}
	return id, nil
}

type ctxKey struct{}

// WithID returns a context carrying id.
func WithID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identifier stored by WithID.
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(ctxKey{}).(ID)
	return id, ok && id != ""
}
