package jobs

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore persists jobs in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed job store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const jobColumns = `id, org_id, type, status, headshot_asset_id, room_asset_id, brief, virtually_staged, output_asset_ids, caption, error, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, j *Job) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO jobs (id, org_id, type, status, headshot_asset_id, room_asset_id, brief, virtually_staged, output_asset_ids, caption, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13)`,
		j.ID, j.OrgID, string(j.Type), string(j.Status), j.HeadshotAssetID, j.RoomAssetID,
		j.Brief, j.VirtuallyStaged, pq.Array(j.OutputAssetIDs), j.Caption, j.Error, j.CreatedAt, j.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Job, error) {
	return scanJob(p.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
}

func (p *PostgresStore) Update(ctx context.Context, j *Job) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, output_asset_ids = $2, caption = $3, error = $4, updated_at = $5
		WHERE id = $6`,
		string(j.Status), pq.Array(j.OutputAssetIDs), j.Caption, j.Error, j.UpdatedAt, j.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (p *PostgresStore) ListByOrg(ctx context.Context, orgID string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE org_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// row is satisfied by *sql.Row and *sql.Rows.
type row interface {
	Scan(dest ...interface{}) error
}

func scanJob(r row) (*Job, error) {
	j := &Job{}
	var (
		jobType, status string
		headshot        sql.NullString
		outputs         pq.StringArray
	)
	err := r.Scan(&j.ID, &j.OrgID, &jobType, &status, &headshot, &j.RoomAssetID,
		&j.Brief, &j.VirtuallyStaged, &outputs, &j.Caption, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	j.Type = Type(jobType)
	j.Status = Status(status)
	if headshot.Valid {
		j.HeadshotAssetID = headshot.String
	}
	if len(outputs) > 0 {
		j.OutputAssetIDs = []string(outputs)
	}
	return j, nil
}

// Migrate creates the jobs table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id                 TEXT PRIMARY KEY,
			org_id             TEXT NOT NULL REFERENCES orgs(id),
			type               TEXT NOT NULL,
			status             TEXT NOT NULL DEFAULT 'created',
			headshot_asset_id  TEXT REFERENCES assets(id),
			room_asset_id      TEXT NOT NULL REFERENCES assets(id),
			brief              TEXT NOT NULL DEFAULT '',
			virtually_staged   BOOLEAN NOT NULL DEFAULT FALSE,
			output_asset_ids   TEXT[] NOT NULL DEFAULT '{}',
			caption            TEXT NOT NULL DEFAULT '',
			error              TEXT NOT NULL DEFAULT '',
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_org_id ON jobs(org_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
