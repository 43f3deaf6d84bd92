package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"finsight/internal/domain/account"
)

type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ account.Repository = (*AccountRepository)(nil)

func (r *AccountRepository) CreateBatch(ctx context.Context, params []account.CreateParams) error {
	if len(params) == 0 {
		return nil
	}

	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO accounts (id, institution_id, plaid_account_id, name, mask, account_type, subtype, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range params {
		_, err := stmt.ExecContext(ctx,
			p.ID, p.InstitutionID, p.PlaidAccountID, p.Name, p.Mask,
			p.AccountType, p.Subtype, p.Balance,
		)
		if err != nil {
			return fmt.Errorf("failed to insert account %s: %w", p.PlaidAccountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit accounts: %w", err)
	}

	return nil
}

func (r *AccountRepository) ListByInstitutionID(ctx context.Context, institutionID string) ([]*account.Account, error) {
	query := `
		SELECT id, institution_id, plaid_account_id, name, mask, account_type, subtype, balance,
		       created_at, updated_at
		FROM accounts
		WHERE institution_id = $1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, institutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		var acc account.Account
		var mask, subtype sql.NullString
		var balance sql.NullFloat64

		err := rows.Scan(
			&acc.ID, &acc.InstitutionID, &acc.PlaidAccountID, &acc.Name,
			&mask, &acc.AccountType, &subtype, &balance,
			&acc.CreatedAt, &acc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}

		if mask.Valid {
			acc.Mask = &mask.String
		}
		if subtype.Valid {
			acc.Subtype = &subtype.String
		}
		if balance.Valid {
			acc.Balance = &balance.Float64
		}

		accounts = append(accounts, &acc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

func (r *AccountRepository) UpdateBalance(ctx context.Context, id string, balance float64) error {
	query := `
		UPDATE accounts
		SET balance = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	if _, err := r.db.ExecContext(ctx, query, balance, id); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}
