// Package billing keeps the local subscription state in step with the
// payment provider. The provider's customer id is stored encrypted; a sha256
// digest of the plaintext id serves as the webhook lookup key.
package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"

	"finsight/internal/domain/user"
	"finsight/internal/infrastructure/crypto"
	"finsight/internal/infrastructure/stripe"
)

// MapSubscriptionStatus translates the payment provider's subscription status
// onto the local enum.
func MapSubscriptionStatus(providerStatus string) user.SubscriptionStatus {
	switch providerStatus {
	case "active", "trialing":
		return user.StatusActive
	case "past_due", "unpaid":
		return user.StatusPastDue
	case "canceled", "incomplete_expired":
		return user.StatusCanceled
	case "incomplete":
		return user.StatusIncomplete
	default:
		return user.StatusUnknown
	}
}

// CustomerHash computes the lookup digest for a provider customer id.
func CustomerHash(customerID string) string {
	sum := sha256.Sum256([]byte(customerID))
	return hex.EncodeToString(sum[:])
}

// Service orchestrates checkout, portal, and webhook-driven status updates.
type Service struct {
	client    stripe.ClientInterface
	userRepo  user.Repository
	encryptor *crypto.Encryptor
}

func NewService(client stripe.ClientInterface, userRepo user.Repository, encryptor *crypto.Encryptor) *Service {
	return &Service{
		client:    client,
		userRepo:  userRepo,
		encryptor: encryptor,
	}
}

// ensureCustomer returns the user's plaintext provider customer id, creating
// and persisting one on first use.
func (s *Service) ensureCustomer(ctx context.Context, u *user.User) (string, error) {
	if u.CustomerEncrypted != nil && *u.CustomerEncrypted != "" {
		customerID, err := s.encryptor.Decrypt(*u.CustomerEncrypted)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt customer id: %w", err)
		}
		return customerID, nil
	}

	customerID, err := s.client.CreateCustomer(ctx, u.Email)
	if err != nil {
		return "", err
	}

	encrypted, err := s.encryptor.Encrypt(customerID)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt customer id: %w", err)
	}

	if err := s.userRepo.SetCustomer(ctx, u.ID, encrypted, CustomerHash(customerID)); err != nil {
		return "", fmt.Errorf("failed to store customer id: %w", err)
	}

	return customerID, nil
}

// StartCheckout returns a checkout URL for the subscription product.
func (s *Service) StartCheckout(ctx context.Context, userID int64, successURL, cancelURL string) (string, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	customerID, err := s.ensureCustomer(ctx, u)
	if err != nil {
		return "", err
	}

	return s.client.CreateCheckoutSession(ctx, customerID, successURL, cancelURL)
}

// OpenPortal returns a billing-portal URL for an existing customer.
func (s *Service) OpenPortal(ctx context.Context, userID int64, returnURL string) (string, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if u.CustomerEncrypted == nil || *u.CustomerEncrypted == "" {
		return "", fmt.Errorf("user %d has no billing customer", userID)
	}

	customerID, err := s.encryptor.Decrypt(*u.CustomerEncrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt customer id: %w", err)
	}

	return s.client.CreatePortalSession(ctx, customerID, returnURL)
}

// CancelSubscription cancels the user's active subscriptions at the provider.
// Local status is updated later by the resulting webhook, not here.
func (s *Service) CancelSubscription(ctx context.Context, userID int64) error {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if u.CustomerEncrypted == nil || *u.CustomerEncrypted == "" {
		return fmt.Errorf("user %d has no billing customer", userID)
	}

	customerID, err := s.encryptor.Decrypt(*u.CustomerEncrypted)
	if err != nil {
		return fmt.Errorf("failed to decrypt customer id: %w", err)
	}

	return s.client.CancelSubscriptions(ctx, customerID)
}

// ApplyCheckoutCompleted activates the subscription after a completed
// subscription-mode checkout. Non-subscription checkouts are ignored.
func (s *Service) ApplyCheckoutCompleted(ctx context.Context, customerID, mode string) error {
	if mode != "subscription" {
		log.Printf("Ignoring checkout completion with mode %q", mode)
		return nil
	}
	return s.userRepo.UpdateSubscriptionStatusByCustomerHash(ctx, CustomerHash(customerID), user.StatusActive)
}

// ApplySubscriptionStatus maps and persists a provider subscription status
// for the user owning the customer id. user.ErrNotFound passes through so the
// webhook handler can acknowledge rather than trigger redelivery.
func (s *Service) ApplySubscriptionStatus(ctx context.Context, customerID, providerStatus string) error {
	status := MapSubscriptionStatus(providerStatus)
	return s.userRepo.UpdateSubscriptionStatusByCustomerHash(ctx, CustomerHash(customerID), status)
}
