package plaid

import (
	"context"
	"time"
)

// ClientInterface allows mocking the provider client in tests.
type ClientInterface interface {
	CreateLinkToken(ctx context.Context, userID int64) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error)
	FetchTransactions(ctx context.Context, encryptedToken string, startDate, endDate time.Time) ([]Transaction, error)
	FetchBalances(ctx context.Context, encryptedToken string) ([]Account, error)
	GetWebhookVerificationKey(ctx context.Context, keyID string) (*WebhookKey, error)
}
