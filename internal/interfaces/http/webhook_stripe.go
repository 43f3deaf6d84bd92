package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	stripesdk "github.com/stripe/stripe-go/v78"

	"finsight/internal/domain/user"
	"finsight/internal/infrastructure/stripe"
)

const stripeSignatureHeader = "Stripe-Signature"

// billingApplier is the slice of the billing service the webhook needs.
type billingApplier interface {
	ApplyCheckoutCompleted(ctx context.Context, customerID, mode string) error
	ApplySubscriptionStatus(ctx context.Context, customerID, providerStatus string) error
}

// StripeWebhookHandler verifies and applies payment provider webhooks.
type StripeWebhookHandler struct {
	client  stripe.ClientInterface
	billing billingApplier
}

func NewStripeWebhookHandler(client stripe.ClientInterface, billing billingApplier) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		client:  client,
		billing: billing,
	}
}

// HandleWebhook verifies the signature over the raw body and dispatches the
// event. Events for unknown customers are acknowledged with 200: redelivery
// cannot fix a missing user.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	event, err := h.client.VerifyWebhook(rawBody, r.Header.Get(stripeSignatureHeader))
	if err != nil {
		log.Printf("Payment webhook verification failed: %v", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	if err := h.applyEvent(r.Context(), event); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			log.Printf("Payment webhook %s: no user for customer, acknowledging", event.Type)
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Printf("Failed to apply payment webhook %s: %v", event.Type, err)
		http.Error(w, "Failed to process event", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *StripeWebhookHandler) applyEvent(ctx context.Context, event stripesdk.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session stripesdk.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return err
		}
		if session.Customer == nil {
			log.Printf("Checkout completion without customer, ignoring")
			return nil
		}
		return h.billing.ApplyCheckoutCompleted(ctx, session.Customer.ID, string(session.Mode))

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripesdk.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		if sub.Customer == nil {
			log.Printf("Subscription event without customer, ignoring")
			return nil
		}
		return h.billing.ApplySubscriptionStatus(ctx, sub.Customer.ID, string(sub.Status))

	default:
		log.Printf("Ignoring payment webhook %s", event.Type)
		return nil
	}
}
