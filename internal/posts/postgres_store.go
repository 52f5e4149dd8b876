package posts

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore persists posts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed post store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const postColumns = `id, org_id, platform, caption, image_asset_ids, scheduled_for, published_at, external_id, status, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, post *Post) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO posts (id, org_id, platform, caption, image_asset_ids, scheduled_for, published_at, external_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11)`,
		post.ID, post.OrgID, string(post.Platform), post.Caption, pq.Array(post.ImageAssetIDs),
		post.ScheduledFor, post.PublishedAt, post.ExternalID, string(post.Status),
		post.CreatedAt, post.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Post, error) {
	return scanPost(p.db.QueryRowContext(ctx, `
		SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
}

func (p *PostgresStore) Update(ctx context.Context, post *Post) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE posts SET caption = $1, image_asset_ids = $2, scheduled_for = $3,
			published_at = $4, external_id = NULLIF($5, ''), status = $6, updated_at = $7
		WHERE id = $8`,
		post.Caption, pq.Array(post.ImageAssetIDs), post.ScheduledFor, post.PublishedAt,
		post.ExternalID, string(post.Status), post.UpdatedAt, post.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (p *PostgresStore) ListByOrg(ctx context.Context, orgID string, limit int) ([]*Post, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE org_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, post)
	}
	return out, rows.Err()
}

// row is satisfied by *sql.Row and *sql.Rows.
type row interface {
	Scan(dest ...interface{}) error
}

func scanPost(r row) (*Post, error) {
	post := &Post{}
	var (
		platform, status string
		images           pq.StringArray
		scheduledFor     sql.NullTime
		publishedAt      sql.NullTime
		externalID       sql.NullString
	)
	err := r.Scan(&post.ID, &post.OrgID, &platform, &post.Caption, &images,
		&scheduledFor, &publishedAt, &externalID, &status, &post.CreatedAt, &post.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	post.Platform = Platform(platform)
	post.Status = Status(status)
	if len(images) > 0 {
		post.ImageAssetIDs = []string(images)
	}
	if scheduledFor.Valid {
		ts := scheduledFor.Time
		post.ScheduledFor = &ts
	}
	if publishedAt.Valid {
		ts := publishedAt.Time
		post.PublishedAt = &ts
	}
	if externalID.Valid {
		post.ExternalID = externalID.String
	}
	return post, nil
}

// Migrate creates the posts table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS posts (
			id               TEXT PRIMARY KEY,
			org_id           TEXT NOT NULL REFERENCES orgs(id),
			platform         TEXT NOT NULL,
			caption          TEXT NOT NULL DEFAULT '',
			image_asset_ids  TEXT[] NOT NULL DEFAULT '{}',
			scheduled_for    TIMESTAMPTZ,
			published_at     TIMESTAMPTZ,
			external_id      TEXT,
			status           TEXT NOT NULL DEFAULT 'draft',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_posts_org_id ON posts(org_id, created_at DESC);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
