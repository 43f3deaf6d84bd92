// Package stripe wraps all outbound calls to the payment provider. Webhook
// signature verification lives here too so the shared signing secret never
// leaves this package.
package stripe

import (
	"context"
	"fmt"

	stripesdk "github.com/stripe/stripe-go/v78"
	portalsession "github.com/stripe/stripe-go/v78/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/customer"
	"github.com/stripe/stripe-go/v78/subscription"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Client handles communication with the payment provider API.
type Client struct {
	priceID       string
	webhookSecret string
}

// ClientInterface allows mocking the payment client in tests.
type ClientInterface interface {
	CreateCustomer(ctx context.Context, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, successURL, cancelURL string) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	CancelSubscriptions(ctx context.Context, customerID string) error
	VerifyWebhook(payload []byte, signatureHeader string) (stripesdk.Event, error)
}

var _ ClientInterface = (*Client)(nil)

// NewClient configures the provider SDK. The secret key is process-global in
// the SDK; priceID selects the subscription product.
func NewClient(secretKey, webhookSecret, priceID string) *Client {
	stripesdk.Key = secretKey
	return &Client{
		priceID:       priceID,
		webhookSecret: webhookSecret,
	}
}

// CreateCustomer registers a customer and returns the provider's customer id.
func (c *Client) CreateCustomer(ctx context.Context, email string) (string, error) {
	params := &stripesdk.CustomerParams{
		Params: stripesdk.Params{Context: ctx},
		Email:  stripesdk.String(email),
	}

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession opens a subscription-mode checkout and returns its URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, customerID, successURL, cancelURL string) (string, error) {
	params := &stripesdk.CheckoutSessionParams{
		Params:     stripesdk.Params{Context: ctx},
		Customer:   stripesdk.String(customerID),
		Mode:       stripesdk.String(string(stripesdk.CheckoutSessionModeSubscription)),
		SuccessURL: stripesdk.String(successURL),
		CancelURL:  stripesdk.String(cancelURL),
		LineItems: []*stripesdk.CheckoutSessionLineItemParams{
			{
				Price:    stripesdk.String(c.priceID),
				Quantity: stripesdk.Int64(1),
			},
		},
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession opens the self-service billing portal for a customer.
func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripesdk.BillingPortalSessionParams{
		Params:    stripesdk.Params{Context: ctx},
		Customer:  stripesdk.String(customerID),
		ReturnURL: stripesdk.String(returnURL),
	}

	sess, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return sess.URL, nil
}

// CancelSubscriptions cancels every active subscription of a customer.
func (c *Client) CancelSubscriptions(ctx context.Context, customerID string) error {
	params := &stripesdk.SubscriptionListParams{
		Customer: stripesdk.String(customerID),
		Status:   stripesdk.String(string(stripesdk.SubscriptionStatusActive)),
	}
	params.Context = ctx

	iter := subscription.List(params)
	for iter.Next() {
		sub := iter.Subscription()
		cancelParams := &stripesdk.SubscriptionCancelParams{
			Params: stripesdk.Params{Context: ctx},
		}
		if _, err := subscription.Cancel(sub.ID, cancelParams); err != nil {
			return fmt.Errorf("failed to cancel subscription %s: %w", sub.ID, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return nil
}

// VerifyWebhook checks the HMAC signature over the raw, unparsed body and
// returns the decoded event. The body must be the exact bytes received; any
// re-serialization breaks the signature.
func (c *Client) VerifyWebhook(payload []byte, signatureHeader string) (stripesdk.Event, error) {
	return webhook.ConstructEvent(payload, signatureHeader, c.webhookSecret)
}
