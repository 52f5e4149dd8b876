package assets

import (
	"context"
	"database/sql"
)

// PostgresStore persists assets in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed asset store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const assetColumns = `id, org_id, kind, filename, content_type, bucket, key, size, width, height, checksum, status, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, a *Asset) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO assets (id, org_id, kind, filename, content_type, bucket, key, size, width, height, checksum, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.OrgID, string(a.Kind), a.Filename, a.ContentType, a.Bucket, a.Key,
		a.Size, a.Width, a.Height, a.Checksum, string(a.Status), a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Asset, error) {
	return scanAsset(p.db.QueryRowContext(ctx, `
		SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
}

func (p *PostgresStore) GetByKey(ctx context.Context, bucket, key string) (*Asset, error) {
	return scanAsset(p.db.QueryRowContext(ctx, `
		SELECT `+assetColumns+` FROM assets WHERE bucket = $1 AND key = $2`, bucket, key))
}

func (p *PostgresStore) Update(ctx context.Context, a *Asset) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE assets SET size = $1, width = $2, height = $3, checksum = $4,
			status = $5, updated_at = $6
		WHERE id = $7`,
		a.Size, a.Width, a.Height, a.Checksum, string(a.Status), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAssetNotFound
	}
	return nil
}

func (p *PostgresStore) ListByOrg(ctx context.Context, orgID string, limit int) ([]*Asset, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+assetColumns+` FROM assets
		WHERE org_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// row is satisfied by *sql.Row and *sql.Rows.
type row interface {
	Scan(dest ...interface{}) error
}

func scanAsset(r row) (*Asset, error) {
	a := &Asset{}
	var kind, status string
	err := r.Scan(&a.ID, &a.OrgID, &kind, &a.Filename, &a.ContentType, &a.Bucket, &a.Key,
		&a.Size, &a.Width, &a.Height, &a.Checksum, &status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Kind = Kind(kind)
	a.Status = Status(status)
	return a, nil
}

// Migrate creates the assets table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS assets (
			id            TEXT PRIMARY KEY,
			org_id        TEXT NOT NULL REFERENCES orgs(id),
			kind          TEXT NOT NULL,
			filename      TEXT NOT NULL,
			content_type  TEXT NOT NULL,
			bucket        TEXT NOT NULL,
			key           TEXT NOT NULL,
			size          BIGINT NOT NULL DEFAULT 0,
			width         INTEGER NOT NULL DEFAULT 0,
			height        INTEGER NOT NULL DEFAULT 0,
			checksum      TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'pending',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_assets_org_id ON assets(org_id, created_at DESC);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_assets_bucket_key ON assets(bucket, key);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
