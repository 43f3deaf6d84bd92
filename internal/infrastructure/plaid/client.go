// Package plaid wraps all outbound calls to the bank-data provider. It is
// the only package that ever sees plaintext access tokens: tokens are
// encrypted before leaving ExchangePublicToken and decrypted on entry to the
// fetch methods.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"finsight/internal/infrastructure/crypto"
)

const (
	defaultTimeout = 60 * time.Second
	pageSize       = 500
)

var environments = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

var (
	// ErrLinkTokenFailed hides provider internals from end users; the
	// underlying cause is logged, not surfaced.
	ErrLinkTokenFailed = errors.New("could not create link token")

	// ErrReauthRequired is returned when the provider reports that the item
	// needs user re-authentication (ITEM_LOGIN_REQUIRED). Callers log it and
	// keep going; it is not a generic fetch failure.
	ErrReauthRequired = errors.New("institution requires re-authentication")
)

// apiError carries the provider's structured error body.
type apiError struct {
	Status  int
	Type    string
	Code    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider API error (status %d): %s - %s", e.Status, e.Code, e.Message)
}

// Client handles communication with the bank-data provider API
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	encryptor  *crypto.Encryptor
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new provider API client for the given environment.
func NewClient(clientID, secret, env string, encryptor *crypto.Encryptor) (*Client, error) {
	baseURL, ok := environments[env]
	if !ok {
		return nil, fmt.Errorf("unknown provider environment %q", env)
	}

	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		clientID:   clientID,
		secret:     secret,
		encryptor:  encryptor,
	}, nil
}

// post sends a JSON request with credentials injected and decodes the
// response into out. Non-200 responses are returned as *apiError.
func (c *Client) post(ctx context.Context, path string, payload map[string]any, out any) error {
	payload["client_id"] = c.clientID
	payload["secret"] = c.secret

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil {
			return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		return &apiError{
			Status:  resp.StatusCode,
			Type:    errResp.ErrorType,
			Code:    errResp.ErrorCode,
			Message: errResp.ErrorMessage,
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// CreateLinkToken creates a short-lived link token for the Link flow.
func (c *Client) CreateLinkToken(ctx context.Context, userID int64) (string, error) {
	var resp linkTokenResponse
	err := c.post(ctx, "/link/token/create", map[string]any{
		"user":          map[string]string{"client_user_id": fmt.Sprintf("%d", userID)},
		"client_name":   "Finsight",
		"products":      []string{"transactions"},
		"country_codes": []string{"US"},
		"language":      "en",
	}, &resp)
	if err != nil {
		// Never leak provider error details to end users
		return "", fmt.Errorf("%w: %v", ErrLinkTokenFailed, err)
	}
	return resp.LinkToken, nil
}

// ExchangePublicToken exchanges a public token for institution metadata and
// an encrypted access token, resolving institution name/logo and the account
// list through the dependent lookups.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error) {
	var exch exchangeResponse
	if err := c.post(ctx, "/item/public_token/exchange", map[string]any{
		"public_token": publicToken,
	}, &exch); err != nil {
		return nil, fmt.Errorf("failed to exchange public token: %w", err)
	}

	var item itemGetResponse
	if err := c.post(ctx, "/item/get", map[string]any{
		"access_token": exch.AccessToken,
	}, &item); err != nil {
		return nil, fmt.Errorf("failed to look up item: %w", err)
	}

	result := &ExchangeResult{
		ItemID: exch.ItemID,
	}

	if item.Item.InstitutionID != nil {
		var inst institutionGetResponse
		if err := c.post(ctx, "/institutions/get_by_id", map[string]any{
			"institution_id": *item.Item.InstitutionID,
			"country_codes":  []string{"US"},
			"options":        map[string]bool{"include_optional_metadata": true},
		}, &inst); err != nil {
			return nil, fmt.Errorf("failed to look up institution: %w", err)
		}
		result.InstitutionID = inst.Institution.InstitutionID
		result.InstitutionName = inst.Institution.Name
		result.Logo = inst.Institution.Logo
	}

	var accounts accountsGetResponse
	if err := c.post(ctx, "/accounts/get", map[string]any{
		"access_token": exch.AccessToken,
	}, &accounts); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	result.Accounts = accounts.Accounts

	encrypted, err := c.encryptor.Encrypt(exch.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	result.AccessToken = encrypted

	return result, nil
}

// FetchTransactions pages through the provider's transaction listing for the
// window until the reported total is reached.
func (c *Client) FetchTransactions(ctx context.Context, encryptedToken string, startDate, endDate time.Time) ([]Transaction, error) {
	accessToken, err := c.encryptor.Decrypt(encryptedToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	var all []Transaction
	for {
		var page transactionsGetResponse
		err := c.post(ctx, "/transactions/get", map[string]any{
			"access_token": accessToken,
			"start_date":   startDate.Format("2006-01-02"),
			"end_date":     endDate.Format("2006-01-02"),
			"options": map[string]int{
				"count":  pageSize,
				"offset": len(all),
			},
		}, &page)
		if err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Code == "ITEM_LOGIN_REQUIRED" {
				return nil, ErrReauthRequired
			}
			return nil, fmt.Errorf("failed to fetch transactions: %w", err)
		}

		all = append(all, page.Transactions...)

		if len(all) >= page.TotalTransactions || len(page.Transactions) == 0 {
			return all, nil
		}
	}
}

// FetchBalances returns current balances for every account on the item.
func (c *Client) FetchBalances(ctx context.Context, encryptedToken string) ([]Account, error) {
	accessToken, err := c.encryptor.Decrypt(encryptedToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	var resp accountsGetResponse
	if err := c.post(ctx, "/accounts/balance/get", map[string]any{
		"access_token": accessToken,
	}, &resp); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Code == "ITEM_LOGIN_REQUIRED" {
			return nil, ErrReauthRequired
		}
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}

	return resp.Accounts, nil
}

// GetWebhookVerificationKey fetches the public verification key (JWK) for a
// webhook JWT key id.
func (c *Client) GetWebhookVerificationKey(ctx context.Context, keyID string) (*WebhookKey, error) {
	var resp webhookKeyResponse
	if err := c.post(ctx, "/webhook_verification_key/get", map[string]any{
		"key_id": keyID,
	}, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch webhook verification key: %w", err)
	}
	return &resp.Key, nil
}
