package transaction

import "time"

// Transaction is one financial event. ID is the provider's external
// transaction identifier and doubles as the dedup key: re-fetching the same
// transaction from an overlapping window must never create a second row.
//
// Amount follows the provider convention: positive = expense,
// negative = refund/credit.
type Transaction struct {
	ID         string
	UserID     int64
	AccountID  string
	Amount     float64
	Date       time.Time
	Name       string
	Categories []string // ordered; first element is the primary category
	Pending    bool
	CreatedAt  time.Time
}

// PrimaryCategory returns the first category label, or "" when unlabeled.
func (t *Transaction) PrimaryCategory() string {
	if len(t.Categories) == 0 {
		return ""
	}
	return t.Categories[0]
}

// IsExpense reports whether the row counts toward spending aggregates:
// settled and positive-amount.
func (t *Transaction) IsExpense() bool {
	return !t.Pending && t.Amount > 0
}
