package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"time"

	domainsync "finsight/internal/domain/sync"
)

// SyncService is the slice of the sync service the jobs need.
type SyncService interface {
	SyncByItemID(ctx context.Context, itemID string) (*domainsync.Result, error)
	SyncAllForUser(ctx context.Context, userID int64, forceStart *time.Time) (*domainsync.BulkResult, error)
}

// InstitutionSyncJob syncs a single institution, resolved by provider item
// id. Submitted by the provider webhook handler and after linking.
type InstitutionSyncJob struct {
	itemID      string
	syncService SyncService
}

func NewInstitutionSyncJob(itemID string, syncService SyncService) *InstitutionSyncJob {
	return &InstitutionSyncJob{
		itemID:      itemID,
		syncService: syncService,
	}
}

func (j *InstitutionSyncJob) Execute(ctx context.Context) error {
	log.Printf("Starting webhook-triggered sync for item %s", j.itemID)

	result, err := j.syncService.SyncByItemID(ctx, j.itemID)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	log.Printf("Webhook sync for item %s completed: inserted=%d, skipped=%d",
		j.itemID, result.SyncedCount, result.Skipped)
	return nil
}

func (j *InstitutionSyncJob) Subject() string {
	return j.itemID
}

func (j *InstitutionSyncJob) Description() string {
	return fmt.Sprintf("Institution sync for item %s", j.itemID)
}

// UserSyncJob runs a full bulk sync of every institution a user has linked.
// Submitted by the scheduler and by the bulk-sync endpoint.
type UserSyncJob struct {
	userID      int64
	syncService SyncService
}

func NewUserSyncJob(userID int64, syncService SyncService) *UserSyncJob {
	return &UserSyncJob{
		userID:      userID,
		syncService: syncService,
	}
}

func (j *UserSyncJob) Execute(ctx context.Context) error {
	log.Printf("Starting bulk sync for user %d", j.userID)

	result, err := j.syncService.SyncAllForUser(ctx, j.userID, nil)
	if err != nil {
		return fmt.Errorf("bulk sync failed: %w", err)
	}

	if len(result.Failed) > 0 {
		log.Printf("Bulk sync for user %d completed with failures: inserted=%d, failed institutions=%v",
			j.userID, result.SyncedCount, result.Failed)
		// Mark for retry visibility; the successful institutions already landed.
		return fmt.Errorf("bulk sync completed with %d failed institutions", len(result.Failed))
	}

	log.Printf("Bulk sync for user %d completed: inserted=%d", j.userID, result.SyncedCount)
	return nil
}

func (j *UserSyncJob) Subject() string {
	return strconv.FormatInt(j.userID, 10)
}

func (j *UserSyncJob) Description() string {
	return fmt.Sprintf("Bulk sync for user %d", j.userID)
}
