package user

import "time"

// SubscriptionStatus is the local billing status enum. Provider statuses are
// mapped onto it by the billing service.
type SubscriptionStatus string

const (
	StatusActive     SubscriptionStatus = "active"
	StatusPastDue    SubscriptionStatus = "past_due"
	StatusCanceled   SubscriptionStatus = "canceled"
	StatusIncomplete SubscriptionStatus = "incomplete"
	StatusUnknown    SubscriptionStatus = "unknown"
)

// User owns institutions and transactions. The Stripe customer id is stored
// encrypted; CustomerHash is a sha256 hex digest of the plaintext id used as
// the webhook lookup key (AES-GCM ciphertexts cannot be queried by equality).
type User struct {
	ID                 int64
	Email              string
	SubscriptionStatus SubscriptionStatus
	TrialEndsAt        *time.Time
	CustomerEncrypted  *string
	CustomerHash       *string
	FCMToken           *string
	LastSyncedAt       *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
