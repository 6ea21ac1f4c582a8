package repository

import (
	"context"

	"shiftledger/internal/checkin/domain"
)

// Repository defines persistence for check-in requests.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	Create(ctx context.Context, r *domain.Request) error
	// ListPendingByOrg returns the manager review queue: pending, unexpired
	// requests, oldest first.
	ListPendingByOrg(ctx context.Context, orgID string) ([]*domain.Request, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Request, error)
	// UpdateReview records the review outcome. The WHERE guard only touches
	// pending rows; RowsAffected 0 means the request was already resolved.
	UpdateReview(ctx context.Context, r *domain.Request) (bool, error)
	// ExpirePending moves pending requests past their expiry to auto_expired
	// and returns how many rows changed.
	ExpirePending(ctx context.Context) (int64, error)
}
