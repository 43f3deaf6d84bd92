package institution

import "time"

// Institution is one linked bank connection. AccessToken is always the
// encrypted form; plaintext credentials never leave the provider adapter.
type Institution struct {
	ID                 string
	UserID             int64
	AccessToken        string
	ItemID             string // provider item identifier, globally unique
	PlaidInstitutionID string
	Name               string
	Logo               *string
	LastSync           *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CreateParams holds the fields needed to persist a new institution after a
// successful public-token exchange.
type CreateParams struct {
	ID                 string
	UserID             int64
	AccessToken        string
	ItemID             string
	PlaidInstitutionID string
	Name               string
	Logo               *string
}
