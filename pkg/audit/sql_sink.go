package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLSink appends decisions to a relational table, for deployments where
// the audit trail is queried alongside business data.
type SQLSink struct {
	db *sql.DB
}

// NewSQLSink creates a SQL sink backed by db.
func NewSQLSink(db *sql.DB) *SQLSink {
	return &SQLSink{db: db}
}

// Migrate creates the decision table if it does not exist.
func (s *SQLSink) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS access_decisions (
			id TEXT PRIMARY KEY,
			decided_at TIMESTAMP NOT NULL,
			principal_id BIGINT NOT NULL,
			org_id BIGINT NOT NULL,
			module TEXT NOT NULL,
			action TEXT NOT NULL,
			resource_org_id BIGINT,
			outcome TEXT NOT NULL,
			layer TEXT,
			reason TEXT,
			trial BOOLEAN NOT NULL DEFAULT FALSE
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("audit: creating access_decisions table: %w", err)
	}
	return nil
}

// Record implements Sink.
func (s *SQLSink) Record(ctx context.Context, d *Decision) error {
	query := `
		INSERT INTO access_decisions
			(id, decided_at, principal_id, org_id, module, action, resource_org_id, outcome, layer, reason, trial)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var resourceOrg interface{}
	if d.ResourceOrgID != nil {
		resourceOrg = int64(*d.ResourceOrgID)
	}

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.Time, int64(d.PrincipalID), int64(d.OrgID),
		string(d.Module), string(d.Action), resourceOrg,
		string(d.Outcome), string(d.Layer), d.Reason, d.Trial)
	if err != nil {
		return fmt.Errorf("audit: inserting decision %s: %w", d.ID, err)
	}
	return nil
}

// CountByOutcome returns decision counts grouped by outcome, for
// operational dashboards.
func (s *SQLSink) CountByOutcome(ctx context.Context) (map[Outcome]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM access_decisions GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("audit: counting decisions: %w", err)
	}
	defer rows.Close()

	counts := make(map[Outcome]int64)
	for rows.Next() {
		var (
			outcome string
			n       int64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[Outcome(outcome)] = n
	}
	return counts, rows.Err()
}
