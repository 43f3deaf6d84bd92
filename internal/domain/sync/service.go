// Package sync pulls transactions and balances from the bank-data provider
// into local storage. Syncs are idempotent: overlapping windows rely on the
// insert-skipping-duplicates storage primitive rather than diffing.
package sync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"finsight/internal/domain/account"
	"finsight/internal/domain/institution"
	"finsight/internal/domain/transaction"
	"finsight/internal/domain/user"
	"finsight/internal/infrastructure/plaid"
)

const (
	// defaultWindowDays is the sync window for institutions never synced before
	defaultWindowDays = 30

	// maxWindowYears caps how far back any sync window may reach
	maxWindowYears = 2
)

var (
	syncTracer = otel.Tracer("finsight.sync")
	syncMeter  = otel.Meter("finsight.sync")

	transactionsSynced metric.Int64Counter
	syncFailures       metric.Int64Counter
)

func init() {
	transactionsSynced, _ = syncMeter.Int64Counter("sync.transactions.inserted",
		metric.WithDescription("New transactions inserted by sync runs"))
	syncFailures, _ = syncMeter.Int64Counter("sync.failures",
		metric.WithDescription("Institution sync runs that ended in error"))
}

// Result contains the outcome of syncing a single institution.
type Result struct {
	InstitutionID string
	SyncedCount   int64
	Skipped       int // provider transactions with no matching local account
}

// BulkResult contains the outcome of syncing every institution of a user.
type BulkResult struct {
	UserID      int64
	SyncedCount int64
	Failed      []string // institution ids whose sync errored
}

// Invalidator drops cached report views after new data lands.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID int64) error
}

// Notifier pushes a device notification after a bulk sync finds new rows.
type Notifier interface {
	NotifySyncComplete(ctx context.Context, u *user.User, newTransactions int64) error
}

// Service orchestrates provider fetches and local persistence.
type Service struct {
	client          plaid.ClientInterface
	userRepo        user.Repository
	institutionRepo institution.Repository
	accountRepo     account.Repository
	transactionRepo transaction.Repository
	invalidator     Invalidator // optional
	notifier        Notifier    // optional
}

// NewService creates a new sync service. invalidator and notifier may be nil.
func NewService(
	client plaid.ClientInterface,
	userRepo user.Repository,
	institutionRepo institution.Repository,
	accountRepo account.Repository,
	transactionRepo transaction.Repository,
	invalidator Invalidator,
	notifier Notifier,
) *Service {
	return &Service{
		client:          client,
		userRepo:        userRepo,
		institutionRepo: institutionRepo,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		invalidator:     invalidator,
		notifier:        notifier,
	}
}

// windowStart picks the start of the fetch window: the forced start if given,
// otherwise the last successful sync, otherwise a default lookback. The result
// is clamped so no window reaches further back than maxWindowYears.
func windowStart(forceStart, lastSync *time.Time, now time.Time) time.Time {
	var start time.Time
	switch {
	case forceStart != nil:
		start = forceStart.UTC()
	case lastSync != nil:
		start = lastSync.UTC()
	default:
		start = now.AddDate(0, 0, -defaultWindowDays)
	}

	floor := now.AddDate(-maxWindowYears, 0, 0)
	if start.Before(floor) {
		log.Printf("Clamping sync window start %s to %s", start.Format("2006-01-02"), floor.Format("2006-01-02"))
		start = floor
	}
	if start.After(now) {
		start = now
	}
	return start
}

// SyncInstitution fetches and stores the transaction and balance state of one
// institution. forceStart overrides the incremental window when non-nil.
func (s *Service) SyncInstitution(ctx context.Context, institutionID string, forceStart *time.Time) (*Result, error) {
	ctx, span := syncTracer.Start(ctx, "sync.SyncInstitution")
	defer span.End()
	span.SetAttributes(attribute.String("institution.id", institutionID))

	inst, err := s.institutionRepo.GetByID(ctx, institutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get institution: %w", err)
	}

	result := &Result{InstitutionID: inst.ID}

	accounts, err := s.accountRepo.ListByInstitutionID(ctx, inst.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	// Nothing to attach transactions to. Still a successful (empty) sync.
	if len(accounts) == 0 {
		log.Printf("Institution %s has no accounts, skipping fetch", inst.ID)
		if err := s.institutionRepo.UpdateLastSync(ctx, inst.ID, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("failed to stamp last sync: %w", err)
		}
		return result, nil
	}

	now := time.Now().UTC()
	start := windowStart(forceStart, inst.LastSync, now)

	// Transactions and balances are independent provider calls; fetch both
	// concurrently.
	var (
		wg          sync.WaitGroup
		providerTxs []plaid.Transaction
		txErr       error
		balances    []plaid.Account
		balErr      error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		providerTxs, txErr = s.client.FetchTransactions(ctx, inst.AccessToken, start, now)
	}()
	go func() {
		defer wg.Done()
		balances, balErr = s.client.FetchBalances(ctx, inst.AccessToken)
	}()
	wg.Wait()

	// Either fetch failing fails the whole attempt; a partial sync would stamp
	// lastSync past data we never stored.
	if txErr != nil {
		syncFailures.Add(ctx, 1)
		return nil, fmt.Errorf("failed to fetch transactions: %w", txErr)
	}
	if balErr != nil {
		syncFailures.Add(ctx, 1)
		return nil, fmt.Errorf("failed to fetch balances: %w", balErr)
	}

	accountIDByProvider := make(map[string]string, len(accounts))
	for _, acc := range accounts {
		accountIDByProvider[acc.PlaidAccountID] = acc.ID
	}

	rows := make([]transaction.Transaction, 0, len(providerTxs))
	for _, ptx := range providerTxs {
		localAccountID, ok := accountIDByProvider[ptx.AccountID]
		if !ok {
			log.Printf("Skipping transaction %s: no local account for provider account %s", ptx.TransactionID, ptx.AccountID)
			result.Skipped++
			continue
		}

		date, err := ptx.GetDate()
		if err != nil {
			log.Printf("Skipping transaction %s: %v", ptx.TransactionID, err)
			result.Skipped++
			continue
		}

		rows = append(rows, transaction.Transaction{
			ID:         ptx.TransactionID,
			UserID:     inst.UserID,
			AccountID:  localAccountID,
			Amount:     ptx.Amount,
			Date:       date,
			Name:       ptx.DisplayName(),
			Categories: ptx.Category,
			Pending:    ptx.Pending,
		})
	}

	inserted, err := s.transactionRepo.InsertBatchIgnoreDuplicates(ctx, rows)
	if err != nil {
		syncFailures.Add(ctx, 1)
		return nil, fmt.Errorf("failed to store transactions: %w", err)
	}
	result.SyncedCount = inserted
	transactionsSynced.Add(ctx, inserted)

	for _, bal := range balances {
		localAccountID, ok := accountIDByProvider[bal.AccountID]
		if !ok {
			continue
		}
		if bal.Balances.Current == nil {
			continue
		}
		if err := s.accountRepo.UpdateBalance(ctx, localAccountID, *bal.Balances.Current); err != nil {
			log.Printf("Warning: failed to update balance for account %s: %v", localAccountID, err)
		}
	}

	if err := s.institutionRepo.UpdateLastSync(ctx, inst.ID, now); err != nil {
		return nil, fmt.Errorf("failed to stamp last sync: %w", err)
	}

	if s.invalidator != nil && inserted > 0 {
		if err := s.invalidator.InvalidateUser(ctx, inst.UserID); err != nil {
			log.Printf("Warning: failed to invalidate report cache for user %d: %v", inst.UserID, err)
		}
	}

	log.Printf("Sync completed for institution %s: fetched=%d, inserted=%d, skipped=%d",
		inst.ID, len(providerTxs), inserted, result.Skipped)

	return result, nil
}

// SyncAllForUser syncs every institution of a user concurrently. One failing
// institution never aborts the others; it contributes zero to the total and
// is listed in the result.
func (s *Service) SyncAllForUser(ctx context.Context, userID int64, forceStart *time.Time) (*BulkResult, error) {
	ctx, span := syncTracer.Start(ctx, "sync.SyncAllForUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	institutions, err := s.institutionRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list institutions: %w", err)
	}

	bulk := &BulkResult{UserID: userID}
	if len(institutions) == 0 {
		if err := s.userRepo.TouchLastSynced(ctx, userID, time.Now().UTC()); err != nil {
			log.Printf("Warning: failed to stamp user %d last sync: %v", userID, err)
		}
		return bulk, nil
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, inst := range institutions {
		wg.Add(1)
		go func(instID string) {
			defer wg.Done()
			res, err := s.SyncInstitution(ctx, instID, forceStart)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("Failed to sync institution %s for user %d: %v", instID, userID, err)
				bulk.Failed = append(bulk.Failed, instID)
				return
			}
			bulk.SyncedCount += res.SyncedCount
		}(inst.ID)
	}
	wg.Wait()

	if err := s.userRepo.TouchLastSynced(ctx, userID, time.Now().UTC()); err != nil {
		log.Printf("Warning: failed to stamp user %d last sync: %v", userID, err)
	}

	if s.notifier != nil && bulk.SyncedCount > 0 {
		if u, err := s.userRepo.GetByID(ctx, userID); err == nil {
			if err := s.notifier.NotifySyncComplete(ctx, u, bulk.SyncedCount); err != nil {
				log.Printf("Warning: failed to notify user %d: %v", userID, err)
			}
		}
	}

	return bulk, nil
}

// SyncByItemID resolves the institution that owns a provider item and syncs
// it. Used by the provider webhook path.
func (s *Service) SyncByItemID(ctx context.Context, itemID string) (*Result, error) {
	inst, err := s.institutionRepo.GetByItemID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve item %s: %w", itemID, err)
	}
	return s.SyncInstitution(ctx, inst.ID, nil)
}
