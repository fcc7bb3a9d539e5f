package correlatives

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Store is the slice of the transactional repository the allocator needs.
// FindCorrelativeForUpdate must hold the row lock until the surrounding
// transaction ends and return shared.ErrCorrelativeNotFound when no row exists.
// InsertCorrelative must be a no-op when the (book, period) row already exists.
type Store interface {
	FindCorrelativeForUpdate(ctx context.Context, book, period string) (Correlative, error)
	InsertCorrelative(ctx context.Context, book, period string) error
	UpdateCorrelativeCounters(ctx context.Context, c Correlative) error
}

// Allocator hands out document numbers per (book, period, role).
type Allocator struct{}

// NewAllocator constructs an Allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// FindOrCreate locks the correlative for (book, period), creating it with zero
// counters on first use.
func (a *Allocator) FindOrCreate(ctx context.Context, store Store, book, period string) (Correlative, error) {
	c, err := store.FindCorrelativeForUpdate(ctx, book, period)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, shared.ErrCorrelativeNotFound) {
		return Correlative{}, err
	}
	if err := store.InsertCorrelative(ctx, book, period); err != nil {
		return Correlative{}, err
	}
	c, err = store.FindCorrelativeForUpdate(ctx, book, period)
	if err != nil {
		return Correlative{}, err
	}
	return c, nil
}

// Step advances the role counter of c, persists it and returns the allocated number.
func (a *Allocator) Step(ctx context.Context, store Store, c Correlative, role Role) (Correlative, int64, error) {
	op := fmt.Sprintf("step correlative %s/%s", c.Book, c.Period)
	if c.IsClosed() {
		return Correlative{}, 0, shared.Validation(op, shared.ErrCorrelativeClosed)
	}
	next, number, err := c.Next(role)
	if err != nil {
		return Correlative{}, 0, shared.Validation(op, err)
	}
	if err := store.UpdateCorrelativeCounters(ctx, next); err != nil {
		return Correlative{}, 0, err
	}
	return next, number, nil
}

// Allocate runs FindOrCreate and Step and returns the formatted document code.
func (a *Allocator) Allocate(ctx context.Context, store Store, book, period string, role Role) (string, error) {
	c, err := a.FindOrCreate(ctx, store, book, period)
	if err != nil {
		return "", err
	}
	_, number, err := a.Step(ctx, store, c, role)
	if err != nil {
		return "", err
	}
	return Format(role, number), nil
}
