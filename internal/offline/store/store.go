// Package store persists the offline event queue. Events replay strictly in
// capture order, so every store returns pending events FIFO.
package store

import (
	"context"

	"shiftledger/internal/offline/domain"
)

// Store is the offline queue's persistence. Implementations keep insertion
// order: Pending returns events oldest first.
type Store interface {
	Append(ctx context.Context, e *domain.Event) error
	// Pending returns all pending events in capture order.
	Pending(ctx context.Context) ([]*domain.Event, error)
	// Update replaces the stored event with the same ID.
	Update(ctx context.Context, e *domain.Event) error
	// Remove deletes the event with the given ID. Removing an unknown ID is
	// not an error.
	Remove(ctx context.Context, id string) error
}
