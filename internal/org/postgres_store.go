package org

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/recontent/recontent/internal/plan"
)

// PostgresStore persists organizations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed organization store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orgColumns = `id, name, plan, weekly_limit, status, stripe_customer_id, stripe_subscription_id, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, o *Organization) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO orgs (id, name, plan, weekly_limit, status, stripe_customer_id, stripe_subscription_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)`,
		o.ID, o.Name, string(o.Plan), o.WeeklyLimit, string(o.Status),
		o.StripeCustomerID, o.StripeSubscriptionID, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return MapUniqueViolation(err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Organization, error) {
	return scanOrg(p.db.QueryRowContext(ctx, `
		SELECT `+orgColumns+` FROM orgs WHERE id = $1`, id))
}

func (p *PostgresStore) GetByStripeSubscription(ctx context.Context, subID string) (*Organization, error) {
	return scanOrg(p.db.QueryRowContext(ctx, `
		SELECT `+orgColumns+` FROM orgs WHERE stripe_subscription_id = $1`, subID))
}

func (p *PostgresStore) GetByStripeCustomer(ctx context.Context, custID string) (*Organization, error) {
	return scanOrg(p.db.QueryRowContext(ctx, `
		SELECT `+orgColumns+` FROM orgs WHERE stripe_customer_id = $1`, custID))
}

func (p *PostgresStore) Update(ctx context.Context, o *Organization) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orgs SET name = $1, plan = $2, weekly_limit = $3, status = $4,
			stripe_customer_id = NULLIF($5, ''), stripe_subscription_id = NULLIF($6, ''),
			updated_at = $7
		WHERE id = $8`,
		o.Name, string(o.Plan), o.WeeklyLimit, string(o.Status),
		o.StripeCustomerID, o.StripeSubscriptionID, o.UpdatedAt, o.ID,
	)
	if err != nil {
		return MapUniqueViolation(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOrgNotFound
	}
	return nil
}

// row is satisfied by *sql.Row and *sql.Rows.
type row interface {
	Scan(dest ...interface{}) error
}

func scanOrg(r row) (*Organization, error) {
	o := &Organization{}
	var (
		planStr, status string
		custID, subID   sql.NullString
	)
	err := r.Scan(&o.ID, &o.Name, &planStr, &o.WeeklyLimit, &status,
		&custID, &subID, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Plan = plan.Plan(planStr)
	o.Status = Status(status)
	if custID.Valid {
		o.StripeCustomerID = custID.String
	}
	if subID.Valid {
		o.StripeSubscriptionID = subID.String
	}
	return o, nil
}

// MapUniqueViolation translates orgs table unique violations into the
// package's sentinel errors. Other errors pass through unchanged.
func MapUniqueViolation(err error) error {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "uq_orgs_stripe_subscription_id":
			return ErrSubscriptionTaken
		case "uq_orgs_stripe_customer_id":
			return ErrCustomerTaken
		}
	}
	return err
}

// Migrate creates the orgs table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS orgs (
			id                      TEXT PRIMARY KEY,
			name                    TEXT NOT NULL,
			plan                    TEXT NOT NULL DEFAULT 'basic',
			weekly_limit            INTEGER NOT NULL DEFAULT 2,
			status                  TEXT NOT NULL DEFAULT 'active',
			stripe_customer_id      TEXT,
			stripe_subscription_id  TEXT,
			created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT uq_orgs_stripe_customer_id UNIQUE (stripe_customer_id),
			CONSTRAINT uq_orgs_stripe_subscription_id UNIQUE (stripe_subscription_id)
		);
		CREATE INDEX IF NOT EXISTS idx_orgs_status ON orgs(status);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
