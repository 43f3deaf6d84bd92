package http

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"finsight/internal/infrastructure/plaid"
	"finsight/internal/interfaces/scheduler"
)

const (
	plaidVerificationHeader = "Plaid-Verification"

	// maxWebhookAge rejects replayed webhooks older than 5 minutes.
	maxWebhookAge = 5 * time.Minute
)

// plaidWebhookBody is the provider's webhook payload. Only the routing
// fields matter here; the authoritative data is re-fetched by the sync.
type plaidWebhookBody struct {
	WebhookType string `json:"webhook_type"`
	WebhookCode string `json:"webhook_code"`
	ItemID      string `json:"item_id"`
	Error       *struct {
		ErrorType string `json:"error_type"`
		ErrorCode string `json:"error_code"`
	} `json:"error"`
}

// plaidVerifier verifies the ES256 JWT the provider attaches to webhooks.
// Verification keys are fetched by key id and cached for the process
// lifetime; the provider rotates them rarely and re-fetch happens naturally
// on unknown kids.
type plaidVerifier struct {
	client plaid.ClientInterface
	now    func() time.Time

	mu   sync.Mutex
	keys map[string]*ecdsa.PublicKey
}

func newPlaidVerifier(client plaid.ClientInterface) *plaidVerifier {
	return &plaidVerifier{
		client: client,
		now:    time.Now,
		keys:   make(map[string]*ecdsa.PublicKey),
	}
}

// jwkToPublicKey assembles a P-256 public key from the provider's JWK fields.
func jwkToPublicKey(key *plaid.WebhookKey) (*ecdsa.PublicKey, error) {
	if key.Kty != "EC" || key.Crv != "P-256" {
		return nil, fmt.Errorf("unexpected key type %s/%s", key.Kty, key.Crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(key.X)
	if err != nil {
		return nil, fmt.Errorf("invalid key x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(key.Y)
	if err != nil {
		return nil, fmt.Errorf("invalid key y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

func (v *plaidVerifier) keyForID(ctx context.Context, keyID string) (*ecdsa.PublicKey, error) {
	v.mu.Lock()
	cached, ok := v.keys[keyID]
	v.mu.Unlock()
	if ok {
		return cached, nil
	}

	jwk, err := v.client.GetWebhookVerificationKey(ctx, keyID)
	if err != nil {
		return nil, err
	}

	pub, err := jwkToPublicKey(jwk)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.keys[keyID] = pub
	v.mu.Unlock()

	return pub, nil
}

// verify checks the webhook JWT signature, age, and body digest against the
// exact raw body bytes.
func (v *plaidVerifier) verify(ctx context.Context, tokenString string, rawBody []byte) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		keyID, _ := t.Header["kid"].(string)
		if keyID == "" {
			return nil, fmt.Errorf("missing key id")
		}
		return v.keyForID(ctx, keyID)
	}, jwt.WithValidMethods([]string{"ES256"}))
	if err != nil {
		return fmt.Errorf("invalid webhook token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("unexpected claims type")
	}

	// Re-check the age from wall clock on top of the library's iat
	// plausibility check.
	iatValue, ok := claims["iat"].(float64)
	if !ok {
		return fmt.Errorf("missing iat claim")
	}
	issuedAt := time.Unix(int64(iatValue), 0)
	now := v.now()
	if issuedAt.After(now.Add(time.Minute)) {
		return fmt.Errorf("webhook issued in the future")
	}
	if now.Sub(issuedAt) > maxWebhookAge {
		return fmt.Errorf("webhook older than %v", maxWebhookAge)
	}

	claimedHash, ok := claims["request_body_sha256"].(string)
	if !ok {
		return fmt.Errorf("missing body hash claim")
	}
	if len(claimedHash) != 64 {
		return fmt.Errorf("malformed body hash claim")
	}
	if _, err := hex.DecodeString(claimedHash); err != nil {
		return fmt.Errorf("malformed body hash claim")
	}

	sum := sha256.Sum256(rawBody)
	actual := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(actual), []byte(claimedHash)) != 1 {
		return fmt.Errorf("body hash mismatch")
	}

	return nil
}

// PlaidWebhookHandler verifies and dispatches bank-data provider webhooks.
type PlaidWebhookHandler struct {
	verifier    *plaidVerifier
	syncService scheduler.SyncService
	pool        *scheduler.WorkerPool
	production  bool
}

func NewPlaidWebhookHandler(client plaid.ClientInterface, syncService scheduler.SyncService, pool *scheduler.WorkerPool, production bool) *PlaidWebhookHandler {
	return &PlaidWebhookHandler{
		verifier:    newPlaidVerifier(client),
		syncService: syncService,
		pool:        pool,
		production:  production,
	}
}

// HandleWebhook verifies the request and triggers the matching action. Once
// verification passes it always returns 200: downstream failures must never
// cause provider-side redelivery.
func (h *PlaidWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// The body hash claim covers the exact bytes on the wire; read them
	// before any JSON decoding.
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	if h.production {
		token := r.Header.Get(plaidVerificationHeader)
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if err := h.verifier.verify(r.Context(), token, rawBody); err != nil {
			log.Printf("Provider webhook verification failed: %v", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	} else {
		log.Printf("Warning: skipping provider webhook verification outside production")
	}

	var body plaidWebhookBody
	if err := json.Unmarshal(rawBody, &body); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	switch body.WebhookType {
	case "TRANSACTIONS":
		// Fire and forget: the HTTP acknowledgment never waits on the sync.
		if err := h.pool.Submit(scheduler.NewInstitutionSyncJob(body.ItemID, h.syncService)); err != nil {
			log.Printf("Failed to enqueue webhook sync for item %s: %v", body.ItemID, err)
		}
	case "ITEM":
		if body.WebhookCode == "ERROR" && body.Error != nil {
			log.Printf("Provider reports item %s error: %s/%s", body.ItemID, body.Error.ErrorType, body.Error.ErrorCode)
		} else {
			log.Printf("Provider item webhook %s for item %s", body.WebhookCode, body.ItemID)
		}
	default:
		log.Printf("Ignoring provider webhook %s/%s", body.WebhookType, body.WebhookCode)
	}

	w.WriteHeader(http.StatusOK)
}
