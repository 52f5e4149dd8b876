package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recontent/recontent/internal/org"
	"github.com/recontent/recontent/internal/plan"
)

func seedOrg(t *testing.T, orgs *org.MemoryStore, limit int, status org.Status) string {
	t.Helper()
	o := &org.Organization{
		ID:          "org_quota",
		Name:        "Skyline Realty",
		Plan:        plan.PlanBasic,
		WeeklyLimit: limit,
		Status:      status,
	}
	require.NoError(t, orgs.Create(context.Background(), o))
	return o.ID
}

func TestAdmitOpensWindowLazily(t *testing.T) {
	orgs := org.NewMemoryStore()
	store := NewMemoryStore(orgs)
	orgID := seedOrg(t, orgs, 2, org.StatusActive)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, err := store.CurrentWindow(ctx, orgID, now)
	require.ErrorIs(t, err, ErrWindowNotFound)

	w, err := store.Admit(ctx, orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Used)
	assert.Equal(t, 2, w.Limit)
	assert.Equal(t, now, w.WindowStart)
	assert.Equal(t, now.Add(WindowLength), w.WindowEnd)
}

func TestAdmitDeniesAtLimit(t *testing.T) {
	orgs := org.NewMemoryStore()
	store := NewMemoryStore(orgs)
	orgID := seedOrg(t, orgs, 2, org.StatusActive)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, err := store.Admit(ctx, orgID, now)
	require.NoError(t, err)
	_, err = store.Admit(ctx, orgID, now)
	require.NoError(t, err)

	w, err := store.Admit(ctx, orgID, now)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	require.NotNil(t, w)
	assert.Equal(t, 2, w.Used)
	assert.Equal(t, 0, w.Remaining())
}

func TestAdmitAfterWindowExpiryOpensFreshWindow(t *testing.T) {
	orgs := org.NewMemoryStore()
	store := NewMemoryStore(orgs)
	orgID := seedOrg(t, orgs, 2, org.StatusActive)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		_, err := store.Admit(ctx, orgID, start)
		require.NoError(t, err)
	}
	_, err := store.Admit(ctx, orgID, start)
	require.ErrorIs(t, err, ErrQuotaExceeded)

	later := start.Add(WindowLength)
	w, err := store.Admit(ctx, orgID, later)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Used)
	assert.Equal(t, later, w.WindowStart)
}

func TestWindowLimitSnapshotSurvivesPlanChange(t *testing.T) {
	orgs := org.NewMemoryStore()
	store := NewMemoryStore(orgs)
	orgID := seedOrg(t, orgs, 2, org.StatusActive)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	w, err := store.Admit(ctx, orgID, now)
	require.NoError(t, err)
	require.Equal(t, 2, w.Limit)

	o, err := orgs.Get(ctx, orgID)
	require.NoError(t, err)
	o.Plan = plan.PlanPremium
	o.WeeklyLimit = 5
	require.NoError(t, orgs.Update(ctx, o))

	// Same window keeps the snapshotted limit.
	w, err = store.Admit(ctx, orgID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, w.Limit)

	// Next window picks up the new plan.
	w, err = store.Admit(ctx, orgID, now.Add(WindowLength))
	require.NoError(t, err)
	assert.Equal(t, 5, w.Limit)
}

func TestSuspensionDeniesBeforeLimit(t *testing.T) {
	orgs := org.NewMemoryStore()
	store := NewMemoryStore(orgs)
	orgID := seedOrg(t, orgs, 5, org.StatusSuspended)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	w, err := store.Admit(context.Background(), orgID, now)
	require.ErrorIs(t, err, ErrOrgSuspended)
	require.NotNil(t, w)
	assert.Equal(t, 0, w.Used)

	// The denial still opened and kept the window.
	w, err = store.CurrentWindow(context.Background(), orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Used)
}

func TestAdmitUnknownOrg(t *testing.T) {
	store := NewMemoryStore(org.NewMemoryStore())

	_, err := store.Admit(context.Background(), "org_missing", time.Now())
	assert.ErrorIs(t, err, ErrOrgNotFound)
}

func TestConcurrentAdmissionsNeverOverAdmit(t *testing.T) {
	orgs := org.NewMemoryStore()
	store := NewMemoryStore(orgs)
	orgID := seedOrg(t, orgs, 5, org.StatusActive)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	// Burn the window down to one remaining slot.
	for i := 0; i < 4; i++ {
		_, err := store.Admit(ctx, orgID, now)
		require.NoError(t, err)
	}

	const attempts = 16
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
				t.Errorf("unexpected admit error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, attempts-1, exceeded)

	w, err := store.CurrentWindow(ctx, orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 5, w.Used)
}

func TestReleaseCompensatesOneAdmission(t *testing.T) {
	orgs := org.NewMemoryStore()
	store := NewMemoryStore(orgs)
	orgID := seedOrg(t, orgs, 2, org.StatusActive)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, err := store.Admit(ctx, orgID, now)
	require.NoError(t, err)
	_, err = store.Admit(ctx, orgID, now)
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, orgID, now))

	w, err := store.Admit(ctx, orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 2, w.Used)
}

func TestReleaseFloorsAtZero(t *testing.T) {
	orgs := org.NewMemoryStore()
	store := NewMemoryStore(orgs)
	orgID := seedOrg(t, orgs, 2, org.StatusActive)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, err := store.Admit(ctx, orgID, now)
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, orgID, now))
	require.NoError(t, store.Release(ctx, orgID, now))

	w, err := store.CurrentWindow(ctx, orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Used)
}

func TestReleaseWithoutWindow(t *testing.T) {
	orgs := org.NewMemoryStore()
	store := NewMemoryStore(orgs)
	orgID := seedOrg(t, orgs, 2, org.StatusActive)

	err := store.Release(context.Background(), orgID, time.Now())
	assert.ErrorIs(t, err, ErrWindowNotFound)
}

func TestLedgerPassesThroughDenials(t *testing.T) {
	orgs := org.NewMemoryStore()
	ledger := NewLedger(NewMemoryStore(orgs), nil)
	orgID := seedOrg(t, orgs, 1, org.StatusActive)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	_, err := ledger.CheckAndIncrement(ctx, orgID, now)
	require.NoError(t, err)

	_, err = ledger.CheckAndIncrement(ctx, orgID, now)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	require.NoError(t, ledger.Decrement(ctx, orgID, now))
	w, err := ledger.Usage(ctx, orgID, now)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Used)
}
