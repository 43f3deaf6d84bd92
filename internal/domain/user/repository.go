package user

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no user matches the lookup. Webhook handlers
// rely on distinguishing it from other storage errors.
var ErrNotFound = errors.New("user not found")

// Repository defines the interface for user data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	// GetByID retrieves a user by its ID
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByCustomerHash retrieves a user by the sha256 digest of its
	// payment-provider customer id. Returns ErrNotFound when absent.
	GetByCustomerHash(ctx context.Context, hash string) (*User, error)

	// SetCustomer stores the encrypted payment-provider customer id and its
	// lookup digest
	SetCustomer(ctx context.Context, userID int64, encrypted, hash string) error

	// UpdateSubscriptionStatusByCustomerHash updates the local subscription
	// status for the user matched by customer digest. Returns ErrNotFound
	// when no user matches.
	UpdateSubscriptionStatusByCustomerHash(ctx context.Context, hash string, status SubscriptionStatus) error

	// TouchLastSynced stamps the user's last bulk sync time
	TouchLastSynced(ctx context.Context, userID int64, at time.Time) error

	// ListSyncCandidates lists users whose last bulk sync is older than the
	// cutoff (or never happened), for the scheduler
	ListSyncCandidates(ctx context.Context, olderThan time.Time) ([]*User, error)
}
