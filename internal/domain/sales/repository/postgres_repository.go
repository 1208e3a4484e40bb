package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FACorreiaa/sales-insight/internal/domain/common"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

const profileColumns = `id, fingerprint, name, delimiter, encoding, thousands_policy,
		       sale_col, cost_col, quantity_col, seller_col, brand_col, category_col,
		       client_col, date_col, created_at, updated_at`

const getProfileByFingerprintQuery = `
		SELECT ` + profileColumns + `
		FROM column_profiles
		WHERE fingerprint = $1
	`

const saveProfileQuery = `
		INSERT INTO column_profiles (
			id, fingerprint, name, delimiter, encoding, thousands_policy,
			sale_col, cost_col, quantity_col, seller_col, brand_col, category_col,
			client_col, date_col
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (fingerprint) DO UPDATE SET
			name = EXCLUDED.name, delimiter = EXCLUDED.delimiter, encoding = EXCLUDED.encoding,
			thousands_policy = EXCLUDED.thousands_policy, sale_col = EXCLUDED.sale_col,
			cost_col = EXCLUDED.cost_col, quantity_col = EXCLUDED.quantity_col,
			seller_col = EXCLUDED.seller_col, brand_col = EXCLUDED.brand_col,
			category_col = EXCLUDED.category_col, client_col = EXCLUDED.client_col,
			date_col = EXCLUDED.date_col, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

const listProfilesQuery = `
		SELECT ` + profileColumns + `
		FROM column_profiles
		ORDER BY updated_at DESC
	`

const deleteProfileQuery = `DELETE FROM column_profiles WHERE fingerprint = $1`

// PostgresProfileRepository implements ProfileRepository using PostgreSQL
type PostgresProfileRepository struct {
	pgpool PgxPool
}

// NewPostgresProfileRepository creates a new PostgreSQL-backed profile repository
func NewPostgresProfileRepository(pgpool PgxPool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pgpool: pgpool}
}

// GetByFingerprint looks up the profile stored for a header fingerprint
func (r *PostgresProfileRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*ColumnProfile, error) {
	rows, err := r.pgpool.Query(ctx, getProfileByFingerprintQuery, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by fingerprint: %w", err)
	}

	profile, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[ColumnProfile])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan column profile: %w", err)
	}
	return profile, nil
}

// Save upserts a profile keyed by fingerprint
func (r *PostgresProfileRepository) Save(ctx context.Context, profile *ColumnProfile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}

	err := r.pgpool.QueryRow(ctx, saveProfileQuery,
		profile.ID, profile.Fingerprint, profile.Name, profile.Delimiter, profile.Encoding,
		profile.ThousandsPolicy, profile.SaleCol, profile.CostCol, profile.QuantityCol,
		profile.SellerCol, profile.BrandCol, profile.CategoryCol, profile.ClientCol, profile.DateCol,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save column profile: %w", err)
	}
	return nil
}

// List returns every stored profile, most recently updated first
func (r *PostgresProfileRepository) List(ctx context.Context) ([]*ColumnProfile, error) {
	rows, err := r.pgpool.Query(ctx, listProfilesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list column profiles: %w", err)
	}

	profiles, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[ColumnProfile])
	if err != nil {
		return nil, fmt.Errorf("failed to scan column profiles: %w", err)
	}
	return profiles, nil
}

// Delete removes the profile for a fingerprint
func (r *PostgresProfileRepository) Delete(ctx context.Context, fingerprint string) error {
	tag, err := r.pgpool.Exec(ctx, deleteProfileQuery, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete column profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrProfileNotFound
	}
	return nil
}
