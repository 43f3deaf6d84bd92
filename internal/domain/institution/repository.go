package institution

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no institution matches the lookup.
	ErrNotFound = errors.New("institution not found")

	// ErrDuplicateLink is returned when the (user, provider institution)
	// pair already exists. Duplicate links are rejected, never merged.
	ErrDuplicateLink = errors.New("institution already linked")
)

// Repository defines the interface for institution data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	// Create persists a new institution. Returns ErrDuplicateLink when the
	// user already linked the same provider institution.
	Create(ctx context.Context, params CreateParams) (*Institution, error)

	// GetByID retrieves an institution by its ID
	GetByID(ctx context.Context, id string) (*Institution, error)

	// GetByItemID retrieves an institution by its provider item identifier
	GetByItemID(ctx context.Context, itemID string) (*Institution, error)

	// ListByUserID retrieves all institutions for a user
	ListByUserID(ctx context.Context, userID int64) ([]*Institution, error)

	// UpdateLastSync stamps the last sync attempt time
	UpdateLastSync(ctx context.Context, id string, at time.Time) error

	// Delete removes an institution; accounts and transactions cascade
	Delete(ctx context.Context, id string) error
}
