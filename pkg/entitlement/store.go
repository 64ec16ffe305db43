package entitlement

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finsuite/accessgate/pkg/permissions"
	"github.com/finsuite/accessgate/pkg/tenant"
)

// SQLStore reads entitlements from a relational administrative store.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a store backed by db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the entitlement table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS module_entitlements (
			org_id BIGINT NOT NULL,
			module TEXT NOT NULL,
			status TEXT NOT NULL,
			trial_end TIMESTAMP,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (org_id, module)
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("entitlement: creating module_entitlements table: %w", err)
	}
	return nil
}

// GetEntitlement returns the row for (org, module), or (nil, nil) when the
// organization has no entitlement for the module.
func (s *SQLStore) GetEntitlement(ctx context.Context, org tenant.OrgID, module permissions.Module) (*Entitlement, error) {
	query := `
		SELECT org_id, module, status, trial_end, updated_at
		FROM module_entitlements
		WHERE org_id = $1 AND module = $2
	`

	var (
		ent      Entitlement
		trialEnd sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, int64(org), string(module)).Scan(
		&ent.OrgID,
		&ent.Module,
		&ent.Status,
		&trialEnd,
		&ent.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("entitlement: querying (%d, %s): %w", org, module, err)
	}
	if trialEnd.Valid {
		t := trialEnd.Time
		ent.TrialEnd = &t
	}
	return &ent, nil
}

// ListEntitlements returns every entitlement row for an organization.
func (s *SQLStore) ListEntitlements(ctx context.Context, org tenant.OrgID) ([]Entitlement, error) {
	query := `
		SELECT org_id, module, status, trial_end, updated_at
		FROM module_entitlements
		WHERE org_id = $1
		ORDER BY module
	`

	rows, err := s.db.QueryContext(ctx, query, int64(org))
	if err != nil {
		return nil, fmt.Errorf("entitlement: listing org %d: %w", org, err)
	}
	defer rows.Close()

	var ents []Entitlement
	for rows.Next() {
		var (
			ent      Entitlement
			trialEnd sql.NullTime
		)
		if err := rows.Scan(&ent.OrgID, &ent.Module, &ent.Status, &trialEnd, &ent.UpdatedAt); err != nil {
			return nil, err
		}
		if trialEnd.Valid {
			t := trialEnd.Time
			ent.TrialEnd = &t
		}
		ents = append(ents, ent)
	}
	return ents, rows.Err()
}

// ListOrgs returns every organization with at least one entitlement row.
// Feeds the periodic cache refresher.
func (s *SQLStore) ListOrgs(ctx context.Context) ([]tenant.OrgID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT org_id FROM module_entitlements ORDER BY org_id`)
	if err != nil {
		return nil, fmt.Errorf("entitlement: listing organizations: %w", err)
	}
	defer rows.Close()

	var orgs []tenant.OrgID
	for rows.Next() {
		var org tenant.OrgID
		if err := rows.Scan(&org); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// UpsertEntitlement writes a row. Exposed for fixtures and the admin layer's
// convenience; the decision engine itself only reads.
func (s *SQLStore) UpsertEntitlement(ctx context.Context, ent *Entitlement) error {
	query := `
		INSERT INTO module_entitlements (org_id, module, status, trial_end, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (org_id, module)
		DO UPDATE SET status = EXCLUDED.status, trial_end = EXCLUDED.trial_end, updated_at = EXCLUDED.updated_at
	`

	var trialEnd interface{}
	if ent.TrialEnd != nil {
		trialEnd = *ent.TrialEnd
	}
	updatedAt := ent.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		int64(ent.OrgID), string(ent.Module), string(ent.Status), trialEnd, updatedAt)
	if err != nil {
		return fmt.Errorf("entitlement: upserting (%d, %s): %w", ent.OrgID, ent.Module, err)
	}
	return nil
}
