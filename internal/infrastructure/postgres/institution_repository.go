package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"finsight/internal/domain/institution"
)

type InstitutionRepository struct {
	db *DB
}

func NewInstitutionRepository(db *DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

var _ institution.Repository = (*InstitutionRepository)(nil)

const institutionColumns = `id, user_id, access_token, item_id, plaid_institution_id,
       name, logo, last_sync, created_at, updated_at`

func scanInstitution(scan func(...any) error) (*institution.Institution, error) {
	var inst institution.Institution
	var logo sql.NullString
	var lastSync sql.NullTime

	err := scan(
		&inst.ID, &inst.UserID, &inst.AccessToken, &inst.ItemID, &inst.PlaidInstitutionID,
		&inst.Name, &logo, &lastSync, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if logo.Valid {
		inst.Logo = &logo.String
	}
	if lastSync.Valid {
		inst.LastSync = &lastSync.Time
	}

	return &inst, nil
}

func (r *InstitutionRepository) Create(ctx context.Context, params institution.CreateParams) (*institution.Institution, error) {
	query := `
		INSERT INTO institutions (id, user_id, access_token, item_id, plaid_institution_id, name, logo)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + institutionColumns + `
	`

	row := r.db.QueryRowContext(
		ctx, query,
		params.ID, params.UserID, params.AccessToken, params.ItemID,
		params.PlaidInstitutionID, params.Name, params.Logo,
	)
	inst, err := scanInstitution(row.Scan)
	if err != nil {
		// unique (user_id, plaid_institution_id): one link per bank per user
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, institution.ErrDuplicateLink
		}
		return nil, fmt.Errorf("failed to create institution: %w", err)
	}

	return inst, nil
}

func (r *InstitutionRepository) GetByID(ctx context.Context, id string) (*institution.Institution, error) {
	query := `
		SELECT ` + institutionColumns + `
		FROM institutions
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)
	inst, err := scanInstitution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, institution.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get institution: %w", err)
	}
	return inst, nil
}

func (r *InstitutionRepository) GetByItemID(ctx context.Context, itemID string) (*institution.Institution, error) {
	query := `
		SELECT ` + institutionColumns + `
		FROM institutions
		WHERE item_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, itemID)
	inst, err := scanInstitution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, institution.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get institution by item: %w", err)
	}
	return inst, nil
}

func (r *InstitutionRepository) ListByUserID(ctx context.Context, userID int64) ([]*institution.Institution, error) {
	query := `
		SELECT ` + institutionColumns + `
		FROM institutions
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list institutions: %w", err)
	}
	defer rows.Close()

	var institutions []*institution.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan institution: %w", err)
		}
		institutions = append(institutions, inst)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating institutions: %w", err)
	}

	return institutions, nil
}

func (r *InstitutionRepository) UpdateLastSync(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE institutions
		SET last_sync = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return institution.ErrNotFound
	}

	return nil
}

func (r *InstitutionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM institutions WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete institution: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return institution.ErrNotFound
	}

	return nil
}
