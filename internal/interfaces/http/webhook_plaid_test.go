package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"finsight/internal/infrastructure/plaid"
	"finsight/internal/interfaces/scheduler"
)

type MockPlaidClient struct {
	CreateLinkTokenFunc           func(ctx context.Context, userID int64) (string, error)
	ExchangePublicTokenFunc       func(ctx context.Context, publicToken string) (*plaid.ExchangeResult, error)
	FetchTransactionsFunc         func(ctx context.Context, encryptedToken string, startDate, endDate time.Time) ([]plaid.Transaction, error)
	FetchBalancesFunc             func(ctx context.Context, encryptedToken string) ([]plaid.Account, error)
	GetWebhookVerificationKeyFunc func(ctx context.Context, keyID string) (*plaid.WebhookKey, error)
}

func (m *MockPlaidClient) CreateLinkToken(ctx context.Context, userID int64) (string, error) {
	return m.CreateLinkTokenFunc(ctx, userID)
}

func (m *MockPlaidClient) ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.ExchangeResult, error) {
	return m.ExchangePublicTokenFunc(ctx, publicToken)
}

func (m *MockPlaidClient) FetchTransactions(ctx context.Context, encryptedToken string, startDate, endDate time.Time) ([]plaid.Transaction, error) {
	return m.FetchTransactionsFunc(ctx, encryptedToken, startDate, endDate)
}

func (m *MockPlaidClient) FetchBalances(ctx context.Context, encryptedToken string) ([]plaid.Account, error) {
	return m.FetchBalancesFunc(ctx, encryptedToken)
}

func (m *MockPlaidClient) GetWebhookVerificationKey(ctx context.Context, keyID string) (*plaid.WebhookKey, error) {
	return m.GetWebhookVerificationKeyFunc(ctx, keyID)
}

// webhookTestKeys generates a signing key and the JWK form the provider
// would serve for it.
func webhookTestKeys(t *testing.T) (*ecdsa.PrivateKey, *plaid.WebhookKey) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	xBytes := make([]byte, 32)
	yBytes := make([]byte, 32)
	priv.PublicKey.X.FillBytes(xBytes)
	priv.PublicKey.Y.FillBytes(yBytes)

	return priv, &plaid.WebhookKey{
		Alg: "ES256",
		Crv: "P-256",
		Kid: "test-kid",
		Kty: "EC",
		Use: "sig",
		X:   base64.RawURLEncoding.EncodeToString(xBytes),
		Y:   base64.RawURLEncoding.EncodeToString(yBytes),
	}
}

func signWebhookToken(t *testing.T, priv *ecdsa.PrivateKey, body []byte, issuedAt time.Time) string {
	t.Helper()

	sum := sha256.Sum256(body)
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iat":                 issuedAt.Unix(),
		"request_body_sha256": hex.EncodeToString(sum[:]),
	})
	token.Header["kid"] = "test-kid"

	signed, err := token.SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newWebhookTestHandler(jwk *plaid.WebhookKey, production bool) *PlaidWebhookHandler {
	client := &MockPlaidClient{
		GetWebhookVerificationKeyFunc: func(ctx context.Context, keyID string) (*plaid.WebhookKey, error) {
			return jwk, nil
		},
	}
	pool := scheduler.NewWorkerPool(1, 0, 4)
	return NewPlaidWebhookHandler(client, nil, pool, production)
}

func TestPlaidWebhook_ValidSignature(t *testing.T) {
	priv, jwk := webhookTestKeys(t)
	body := []byte(`{"webhook_type":"ITEM","webhook_code":"ERROR","item_id":"item-1","error":{"error_type":"ITEM_ERROR","error_code":"ITEM_LOGIN_REQUIRED"}}`)

	handler := newWebhookTestHandler(jwk, true)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/plaid", bytes.NewReader(body))
	req.Header.Set(plaidVerificationHeader, signWebhookToken(t, priv, body, time.Now()))
	rr := httptest.NewRecorder()

	handler.HandleWebhook(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestPlaidWebhook_EnqueuesTransactionSync(t *testing.T) {
	priv, jwk := webhookTestKeys(t)
	body := []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-7"}`)

	handler := newWebhookTestHandler(jwk, true)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/plaid", bytes.NewReader(body))
	req.Header.Set(plaidVerificationHeader, signWebhookToken(t, priv, body, time.Now()))
	rr := httptest.NewRecorder()

	handler.HandleWebhook(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if got := handler.pool.QueueDepth(); got != 1 {
		t.Errorf("expected 1 queued job, got %d", got)
	}
}

func TestPlaidWebhook_MissingHeader(t *testing.T) {
	_, jwk := webhookTestKeys(t)

	handler := newWebhookTestHandler(jwk, true)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/plaid", bytes.NewReader([]byte(`{}`)))
	rr := httptest.NewRecorder()

	handler.HandleWebhook(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestPlaidWebhook_TamperedBody(t *testing.T) {
	priv, jwk := webhookTestKeys(t)
	signedBody := []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-7"}`)
	sentBody := []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-ATTACKER"}`)

	handler := newWebhookTestHandler(jwk, true)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/plaid", bytes.NewReader(sentBody))
	req.Header.Set(plaidVerificationHeader, signWebhookToken(t, priv, signedBody, time.Now()))
	rr := httptest.NewRecorder()

	handler.HandleWebhook(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestPlaidWebhook_WrongAlgorithm(t *testing.T) {
	_, jwk := webhookTestKeys(t)
	body := []byte(`{"webhook_type":"ITEM","webhook_code":"NEW_ACCOUNTS_AVAILABLE","item_id":"item-1"}`)

	sum := sha256.Sum256(body)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat":                 time.Now().Unix(),
		"request_body_sha256": hex.EncodeToString(sum[:]),
	})
	token.Header["kid"] = "test-kid"
	signed, err := token.SignedString([]byte("not-an-ec-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	handler := newWebhookTestHandler(jwk, true)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/plaid", bytes.NewReader(body))
	req.Header.Set(plaidVerificationHeader, signed)
	rr := httptest.NewRecorder()

	handler.HandleWebhook(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestPlaidWebhook_StaleToken(t *testing.T) {
	priv, jwk := webhookTestKeys(t)
	body := []byte(`{"webhook_type":"ITEM","webhook_code":"NEW_ACCOUNTS_AVAILABLE","item_id":"item-1"}`)

	handler := newWebhookTestHandler(jwk, true)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/plaid", bytes.NewReader(body))
	req.Header.Set(plaidVerificationHeader, signWebhookToken(t, priv, body, time.Now().Add(-10*time.Minute)))
	rr := httptest.NewRecorder()

	handler.HandleWebhook(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestPlaidWebhook_NonProductionSkipsVerification(t *testing.T) {
	_, jwk := webhookTestKeys(t)
	body := []byte(`{"webhook_type":"ITEM","webhook_code":"NEW_ACCOUNTS_AVAILABLE","item_id":"item-1"}`)

	handler := newWebhookTestHandler(jwk, false)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/plaid", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	handler.HandleWebhook(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}
