package plaid

import (
	"fmt"
	"time"
)

// linkTokenResponse represents the API response for link token creation
type linkTokenResponse struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
	RequestID  string `json:"request_id"`
}

// exchangeResponse represents the API response for public token exchange
type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

// itemGetResponse represents the API response for item lookup
type itemGetResponse struct {
	Item struct {
		ItemID        string  `json:"item_id"`
		InstitutionID *string `json:"institution_id"`
	} `json:"item"`
	RequestID string `json:"request_id"`
}

// institutionGetResponse represents the API response for institution lookup
type institutionGetResponse struct {
	Institution struct {
		InstitutionID string  `json:"institution_id"`
		Name          string  `json:"name"`
		Logo          *string `json:"logo"`
	} `json:"institution"`
	RequestID string `json:"request_id"`
}

// Account represents an account from the provider API
type Account struct {
	AccountID string  `json:"account_id"`
	Name      string  `json:"name"`
	Mask      *string `json:"mask"`
	Type      string  `json:"type"`
	Subtype   *string `json:"subtype"`
	Balances  Balance `json:"balances"`
}

// Balance represents the balances block of a provider account
type Balance struct {
	Available *float64 `json:"available"`
	Current   *float64 `json:"current"`
	Limit     *float64 `json:"limit"`
}

// accountsGetResponse represents the API response for account listing
type accountsGetResponse struct {
	Accounts  []Account `json:"accounts"`
	RequestID string    `json:"request_id"`
}

// Transaction represents a transaction from the provider API
type Transaction struct {
	TransactionID string   `json:"transaction_id"`
	AccountID     string   `json:"account_id"`
	Amount        float64  `json:"amount"` // positive = expense, negative = credit
	DateString    string   `json:"date"`   // "2006-01-02"
	Name          string   `json:"name"`
	MerchantName  *string  `json:"merchant_name"`
	Category      []string `json:"category"` // primary category first
	Pending       bool     `json:"pending"`
}

// GetDate parses and returns the transaction date
func (t *Transaction) GetDate() (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", t.DateString)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date '%s': %w", t.DateString, err)
	}
	return parsed, nil
}

// DisplayName prefers the merchant name when the provider supplies one.
func (t *Transaction) DisplayName() string {
	if t.MerchantName != nil && *t.MerchantName != "" {
		return *t.MerchantName
	}
	return t.Name
}

// transactionsGetResponse represents one page of the transaction listing
type transactionsGetResponse struct {
	Accounts          []Account     `json:"accounts"`
	Transactions      []Transaction `json:"transactions"`
	TotalTransactions int           `json:"total_transactions"`
	RequestID         string        `json:"request_id"`
}

// WebhookKey is the JWK returned by the webhook-verification-key endpoint
type WebhookKey struct {
	Alg       string `json:"alg"`
	Crv       string `json:"crv"`
	Kid       string `json:"kid"`
	Kty       string `json:"kty"`
	Use       string `json:"use"`
	X         string `json:"x"`
	Y         string `json:"y"`
	CreatedAt int64  `json:"created_at"`
	ExpiredAt *int64 `json:"expired_at"`
}

// webhookKeyResponse represents the API response for the key lookup
type webhookKeyResponse struct {
	Key       WebhookKey `json:"key"`
	RequestID string     `json:"request_id"`
}

// ExchangeResult is what ExchangePublicToken hands back to callers. The
// access token is already encrypted; plaintext never leaves this package.
type ExchangeResult struct {
	AccessToken     string // encrypted
	ItemID          string
	InstitutionID   string
	InstitutionName string
	Logo            *string
	Accounts        []Account
}

// errorResponse represents an error response from the provider API
type errorResponse struct {
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
	RequestID      string `json:"request_id"`
}
