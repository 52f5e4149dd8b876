package billing

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/recontent/recontent/internal/org"
	"github.com/recontent/recontent/internal/user"
)

// PostgresStore persists reconciliation state in PostgreSQL. Writes that
// touch both the organization and its payer run in a single transaction.
type PostgresStore struct {
	db    *sql.DB
	orgs  *org.PostgresStore
	users *user.PostgresStore
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:    db,
		orgs:  org.NewPostgresStore(db),
		users: user.NewPostgresStore(db),
	}
}

func (p *PostgresStore) OrgByID(ctx context.Context, id string) (*org.Organization, error) {
	return p.orgs.Get(ctx, id)
}

func (p *PostgresStore) OrgBySubscription(ctx context.Context, subscriptionID string) (*org.Organization, error) {
	return p.orgs.GetByStripeSubscription(ctx, subscriptionID)
}

func (p *PostgresStore) OrgByCustomer(ctx context.Context, customerID string) (*org.Organization, error) {
	return p.orgs.GetByStripeCustomer(ctx, customerID)
}

func (p *PostgresStore) CreateOrg(ctx context.Context, o *org.Organization, payer *user.User) (UserChange, error) {
	return p.writeOrg(ctx, o, payer, `
		INSERT INTO orgs (id, name, plan, weekly_limit, status, stripe_customer_id, stripe_subscription_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)`)
}

func (p *PostgresStore) UpdateOrg(ctx context.Context, o *org.Organization, payer *user.User) (UserChange, error) {
	return p.writeOrg(ctx, o, payer, `
		UPDATE orgs SET name = $2, plan = $3, weekly_limit = $4, status = $5,
			stripe_customer_id = NULLIF($6, ''), stripe_subscription_id = NULLIF($7, ''),
			created_at = $8, updated_at = $9
		WHERE id = $1`)
}

func (p *PostgresStore) writeOrg(ctx context.Context, o *org.Organization, payer *user.User, query string) (UserChange, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return UserUnchanged, fmt.Errorf("billing: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query,
		o.ID, o.Name, string(o.Plan), o.WeeklyLimit, string(o.Status),
		o.StripeCustomerID, o.StripeSubscriptionID, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return UserUnchanged, org.MapUniqueViolation(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return UserUnchanged, err
	}
	if rows == 0 {
		return UserUnchanged, org.ErrOrgNotFound
	}

	change, err := upsertPayerTx(ctx, tx, o, payer)
	if err != nil {
		return UserUnchanged, err
	}
	if err := tx.Commit(); err != nil {
		return UserUnchanged, fmt.Errorf("billing: commit: %w", err)
	}
	return change, nil
}

func upsertPayerTx(ctx context.Context, tx *sql.Tx, o *org.Organization, payer *user.User) (UserChange, error) {
	if payer == nil {
		return UserUnchanged, nil
	}

	var (
		existingID  string
		existingOrg string
	)
	err := tx.QueryRowContext(ctx, `
		SELECT id, org_id FROM users WHERE email = LOWER($1) FOR UPDATE`,
		payer.Email,
	).Scan(&existingID, &existingOrg)
	if err == sql.ErrNoRows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, org_id, email, role, status, created_at, updated_at)
			VALUES ($1, $2, LOWER($3), $4, $5, $6, $7)`,
			payer.ID, o.ID, payer.Email, payer.Role, string(payer.Status),
			payer.CreatedAt, payer.UpdatedAt,
		)
		if err != nil {
			return UserUnchanged, err
		}
		return UserCreated, nil
	}
	if err != nil {
		return UserUnchanged, err
	}

	if existingOrg == o.ID {
		return UserUnchanged, nil
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE users SET org_id = $1, updated_at = $2 WHERE id = $3`,
		o.ID, payer.UpdatedAt, existingID,
	)
	if err != nil {
		return UserUnchanged, err
	}
	return UserReparented, nil
}
