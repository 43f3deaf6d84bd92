package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"finsight/internal/domain/user"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ user.Repository = (*UserRepository)(nil)

const userColumns = `id, email, subscription_status, trial_ends_at,
       customer_encrypted, customer_hash, fcm_token, last_synced_at,
       created_at, updated_at`

func scanUser(scan func(...any) error) (*user.User, error) {
	var u user.User
	var trialEndsAt, lastSyncedAt sql.NullTime
	var customerEncrypted, customerHash, fcmToken sql.NullString

	err := scan(
		&u.ID, &u.Email, &u.SubscriptionStatus, &trialEndsAt,
		&customerEncrypted, &customerHash, &fcmToken, &lastSyncedAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if trialEndsAt.Valid {
		u.TrialEndsAt = &trialEndsAt.Time
	}
	if lastSyncedAt.Valid {
		u.LastSyncedAt = &lastSyncedAt.Time
	}
	if customerEncrypted.Valid {
		u.CustomerEncrypted = &customerEncrypted.String
	}
	if customerHash.Valid {
		u.CustomerHash = &customerHash.String
	}
	if fcmToken.Valid {
		u.FCMToken = &fcmToken.String
	}

	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByCustomerHash(ctx context.Context, hash string) (*user.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE customer_hash = $1
	`

	row := r.db.QueryRowContext(ctx, query, hash)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by customer: %w", err)
	}
	return u, nil
}

func (r *UserRepository) SetCustomer(ctx context.Context, userID int64, encrypted, hash string) error {
	query := `
		UPDATE users
		SET customer_encrypted = $1,
		    customer_hash = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, encrypted, hash, userID)
	if err != nil {
		return fmt.Errorf("failed to set customer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return user.ErrNotFound
	}

	return nil
}

func (r *UserRepository) UpdateSubscriptionStatusByCustomerHash(ctx context.Context, hash string, status user.SubscriptionStatus) error {
	query := `
		UPDATE users
		SET subscription_status = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE customer_hash = $2
	`

	result, err := r.db.ExecContext(ctx, query, status, hash)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return user.ErrNotFound
	}

	return nil
}

func (r *UserRepository) TouchLastSynced(ctx context.Context, userID int64, at time.Time) error {
	query := `
		UPDATE users
		SET last_synced_at = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	if _, err := r.db.ExecContext(ctx, query, at, userID); err != nil {
		return fmt.Errorf("failed to stamp last sync: %w", err)
	}
	return nil
}

func (r *UserRepository) ListSyncCandidates(ctx context.Context, olderThan time.Time) ([]*user.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE last_synced_at IS NULL OR last_synced_at < $1
		ORDER BY last_synced_at ASC NULLS FIRST
	`

	rows, err := r.db.QueryContext(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync candidates: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}
