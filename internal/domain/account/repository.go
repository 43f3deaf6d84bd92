package account

import "context"

// Repository defines the interface for account data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	// CreateBatch persists the accounts discovered at link time
	CreateBatch(ctx context.Context, params []CreateParams) error

	// ListByInstitutionID retrieves all accounts under an institution
	ListByInstitutionID(ctx context.Context, institutionID string) ([]*Account, error)

	// UpdateBalance sets the current balance for one account
	UpdateBalance(ctx context.Context, id string, balance float64) error
}
