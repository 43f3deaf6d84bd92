package transaction

import (
	"context"
	"time"
)

// Repository defines the interface for transaction data access.
// Defined in the domain layer, implemented in the infrastructure layer.
type Repository interface {
	// InsertBatchIgnoreDuplicates bulk-inserts rows, silently skipping any
	// whose external id already exists (one set-insert, no per-row existence
	// checks). Returns the number of rows actually inserted.
	InsertBatchIgnoreDuplicates(ctx context.Context, rows []Transaction) (int64, error)

	// ListByUserID lists a user's transactions newest-first with paging
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Transaction, error)

	// ListExpensesInRange lists settled expense rows (pending = false,
	// amount > 0) with date in [start, end), for the aggregation queries
	ListExpensesInRange(ctx context.Context, userID int64, start, end time.Time) ([]*Transaction, error)
}
