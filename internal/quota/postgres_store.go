package quota

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/recontent/recontent/internal/idgen"
	"github.com/recontent/recontent/internal/org"
)

// PostgresStore persists quota windows in PostgreSQL.
//
// Admit locks the organization row with SELECT ... FOR UPDATE, which
// serializes concurrent admission checks per organization: two requests
// racing on the last admission cannot both observe used = limit-1.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed quota store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Admit(ctx context.Context, orgID string, now time.Time) (*Window, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		status      string
		weeklyLimit int
	)
	err = tx.QueryRowContext(ctx, `
		SELECT status, weekly_limit FROM orgs WHERE id = $1 FOR UPDATE`, orgID,
	).Scan(&status, &weeklyLimit)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}

	w, err := p.findWindowTx(ctx, tx, orgID, now)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = &Window{
			ID:          idgen.WithPrefix("qw_"),
			OrgID:       orgID,
			WindowStart: now,
			WindowEnd:   now.Add(WindowLength),
			Limit:       weeklyLimit,
			Used:        0,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO quotas (id, org_id, window_start, window_end, weekly_limit, used_count)
			VALUES ($1, $2, $3, $4, $5, 0)`,
			w.ID, w.OrgID, w.WindowStart, w.WindowEnd, w.Limit,
		)
		if err != nil {
			return nil, fmt.Errorf("open window: %w", err)
		}
	}

	if org.Status(status) != org.StatusActive {
		// Keep the freshly opened window; the denial itself is not an abort.
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return w, ErrOrgSuspended
	}
	if w.Used >= w.Limit {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return w, ErrQuotaExceeded
	}

	w.Used++
	_, err = tx.ExecContext(ctx, `
		UPDATE quotas SET used_count = $1 WHERE id = $2`, w.Used, w.ID)
	if err != nil {
		return nil, fmt.Errorf("increment window: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return w, nil
}

func (p *PostgresStore) Release(ctx context.Context, orgID string, now time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE quotas SET used_count = GREATEST(used_count - 1, 0)
		WHERE org_id = $1 AND window_start <= $2 AND window_end > $2`,
		orgID, now,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrWindowNotFound
	}
	return nil
}

func (p *PostgresStore) CurrentWindow(ctx context.Context, orgID string, now time.Time) (*Window, error) {
	w := &Window{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, org_id, window_start, window_end, weekly_limit, used_count
		FROM quotas
		WHERE org_id = $1 AND window_start <= $2 AND window_end > $2
		ORDER BY window_start DESC LIMIT 1`,
		orgID, now,
	).Scan(&w.ID, &w.OrgID, &w.WindowStart, &w.WindowEnd, &w.Limit, &w.Used)
	if err == sql.ErrNoRows {
		return nil, ErrWindowNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (p *PostgresStore) findWindowTx(ctx context.Context, tx *sql.Tx, orgID string, now time.Time) (*Window, error) {
	w := &Window{}
	err := tx.QueryRowContext(ctx, `
		SELECT id, org_id, window_start, window_end, weekly_limit, used_count
		FROM quotas
		WHERE org_id = $1 AND window_start <= $2 AND window_end > $2
		ORDER BY window_start DESC LIMIT 1
		FOR UPDATE`,
		orgID, now,
	).Scan(&w.ID, &w.OrgID, &w.WindowStart, &w.WindowEnd, &w.Limit, &w.Used)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Migrate creates the quotas table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS quotas (
			id            TEXT PRIMARY KEY,
			org_id        TEXT NOT NULL REFERENCES orgs(id),
			window_start  TIMESTAMPTZ NOT NULL,
			window_end    TIMESTAMPTZ NOT NULL,
			weekly_limit  INTEGER NOT NULL DEFAULT 2,
			used_count    INTEGER NOT NULL DEFAULT 0,
			CONSTRAINT chk_quotas_used_nonneg CHECK (used_count >= 0)
		);
		CREATE INDEX IF NOT EXISTS idx_quotas_org_window ON quotas(org_id, window_start, window_end);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
