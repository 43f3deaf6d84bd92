// Package firebase sends device push notifications through Firebase Cloud
// Messaging. Used to tell users when a sync landed new transactions.
package firebase

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"finsight/internal/domain/user"
)

// Client implements sync.Notifier over FCM.
type Client struct {
	msgClient *messaging.Client
}

// NewClient initializes a Firebase app and returns an FCM client.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}

	return &Client{msgClient: msgClient}, nil
}

// NotifySyncComplete pushes a notification to the user's registered device.
// Users without a token are silently skipped.
func (c *Client) NotifySyncComplete(ctx context.Context, u *user.User, newTransactions int64) error {
	if u.FCMToken == nil || *u.FCMToken == "" {
		return nil
	}

	msg := &messaging.Message{
		Token: *u.FCMToken,
		Notification: &messaging.Notification{
			Title: "Accounts updated",
			Body:  fmt.Sprintf("%d new transactions imported", newTransactions),
		},
		Data: map[string]string{
			"type": "sync_complete",
		},
	}

	_, err := c.msgClient.Send(ctx, msg)
	if err != nil {
		if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) {
			log.Printf("Invalid FCM token for user %d, dropping notification", u.ID)
			return nil
		}
		return fmt.Errorf("failed to send FCM message: %w", err)
	}

	return nil
}
