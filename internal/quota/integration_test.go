package quota

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recontent/recontent/internal/idgen"
	"github.com/recontent/recontent/internal/org"
	"github.com/recontent/recontent/internal/plan"
	"github.com/recontent/recontent/internal/testutil"
)

// Integration tests against a real PostgreSQL database, gated on POSTGRES_URL.

func seedPGOrg(t *testing.T, db *sql.DB, limit int, status org.Status) string {
	t.Helper()
	now := time.Now().UTC()
	o := &org.Organization{
		ID:          idgen.WithPrefix("org_"),
		Name:        "Harborview Estates",
		Plan:        plan.PlanBasic,
		WeeklyLimit: limit,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, org.NewPostgresStore(db).Create(context.Background(), o))
	return o.ID
}

func TestPostgresAdmitLifecycle(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	orgID := seedPGOrg(t, db, 2, org.StatusActive)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, err := store.CurrentWindow(ctx, orgID, now)
	require.ErrorIs(t, err, ErrWindowNotFound)

	w, err := store.Admit(ctx, orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Used)
	assert.Equal(t, 2, w.Limit)

	_, err = store.Admit(ctx, orgID, now)
	require.NoError(t, err)
	_, err = store.Admit(ctx, orgID, now)
	require.ErrorIs(t, err, ErrQuotaExceeded)

	// A fresh window opens once the first one lapses.
	later := now.Add(WindowLength)
	w, err = store.Admit(ctx, orgID, later)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Used)

	require.NoError(t, store.Release(ctx, orgID, later))
	w, err = store.CurrentWindow(ctx, orgID, later)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Used)
}

func TestPostgresAdmitSuspendedOrgOpensButDenies(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	orgID := seedPGOrg(t, db, 5, org.StatusSuspended)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	w, err := store.Admit(ctx, orgID, now)
	require.ErrorIs(t, err, ErrOrgSuspended)
	require.NotNil(t, w)
	assert.Equal(t, 0, w.Used)

	// The window opened on the way to the denial survives.
	w, err = store.CurrentWindow(ctx, orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Used)
}

func TestPostgresAdmitSerializesConcurrentChecks(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	orgID := seedPGOrg(t, db, 3, org.StatusActive)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	const attempts = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		exceeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Admit(ctx, orgID, now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case err == ErrQuotaExceeded:
				exceeded++
			default:
				t.Errorf("admit: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, admitted)
	assert.Equal(t, attempts-3, exceeded)

	w, err := store.CurrentWindow(ctx, orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 3, w.Used)
}

func TestPostgresAdmitUnknownOrg(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	_, err := NewPostgresStore(db).Admit(context.Background(), "org_missing", time.Now().UTC())
	require.ErrorIs(t, err, ErrOrgNotFound)
}
