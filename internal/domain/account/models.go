package account

import "time"

// Account is one ledger account under an institution. Balance is nullable:
// it may be temporarily unknown until the first balance refresh succeeds.
type Account struct {
	ID             string
	InstitutionID  string
	PlaidAccountID string
	Name           string
	Mask           *string
	AccountType    string
	Subtype        *string
	Balance        *float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateParams holds the fields needed to persist an account at link time.
type CreateParams struct {
	ID             string
	InstitutionID  string
	PlaidAccountID string
	Name           string
	Mask           *string
	AccountType    string
	Subtype        *string
	Balance        *float64
}
