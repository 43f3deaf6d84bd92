package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"finsight/internal/domain/transaction"
)

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

var _ transaction.Repository = (*TransactionRepository)(nil)

// insertChunkSize keeps each multi-row INSERT under the 65535 bind parameter
// limit (8 params per row).
const insertChunkSize = 1000

// InsertBatchIgnoreDuplicates bulk-inserts transactions in a single set
// statement per chunk. Rows whose external id already exists are skipped by
// ON CONFLICT DO NOTHING, so overlapping sync windows never duplicate or
// rewrite history.
func (r *TransactionRepository) InsertBatchIgnoreDuplicates(ctx context.Context, txs []transaction.Transaction) (int64, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	var inserted int64
	for start := 0; start < len(txs); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(txs) {
			end = len(txs)
		}
		chunk := txs[start:end]

		var sb strings.Builder
		sb.WriteString(`
			INSERT INTO transactions (id, user_id, account_id, amount, transaction_date, name, categories, pending)
			VALUES `)

		args := make([]any, 0, len(chunk)*8)
		for i, tx := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			base := i * 8
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
			args = append(args,
				tx.ID, tx.UserID, tx.AccountID, tx.Amount,
				tx.Date, tx.Name, pq.Array(tx.Categories), tx.Pending,
			)
		}

		sb.WriteString(" ON CONFLICT (id) DO NOTHING")

		result, err := r.db.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert transactions: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("failed to get affected rows: %w", err)
		}
		inserted += rows
	}

	return inserted, nil
}

const transactionColumns = `id, user_id, account_id, amount, transaction_date, name, categories, pending, created_at`

func scanTransaction(scan func(...any) error) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	var categories pq.StringArray

	err := scan(
		&tx.ID, &tx.UserID, &tx.AccountID, &tx.Amount,
		&tx.Date, &tx.Name, &categories, &tx.Pending, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Categories = categories
	return &tx, nil
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY transaction_date DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

func (r *TransactionRepository) ListExpensesInRange(ctx context.Context, userID int64, start, end time.Time) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		  AND pending = FALSE
		  AND amount > 0
		  AND transaction_date >= $2
		  AND transaction_date < $3
		ORDER BY transaction_date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}
