package posts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recontent/recontent/internal/compose"
)

func newService() *Service {
	return NewService(NewMemoryStore(), compose.NewMockComposer())
}

func TestDraftCreatesPostWithCaption(t *testing.T) {
	svc := newService()

	post, err := svc.Draft(context.Background(), "org_1", DraftRequest{
		Platform:      PlatformInstagram,
		Brief:         "Sunny 3-bed craftsman near the park",
		ImageAssetIDs: []string{"ast_a", "ast_b"},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(post.ID, "post_"))
	assert.Equal(t, "org_1", post.OrgID)
	assert.Equal(t, StatusDraft, post.Status)
	assert.Contains(t, post.Caption, "Sunny 3-bed craftsman near the park")
	assert.Contains(t, post.Caption, "#ForSale")
	assert.Equal(t, []string{"ast_a", "ast_b"}, post.ImageAssetIDs)
	assert.Nil(t, post.ScheduledFor)

	stored, err := svc.Get(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.Caption, stored.Caption)
}

func TestDraftStagedAddsDisclosure(t *testing.T) {
	svc := newService()

	post, err := svc.Draft(context.Background(), "org_1", DraftRequest{
		Platform:      PlatformFacebook,
		Brief:         "Modern loft downtown",
		ImageAssetIDs: []string{"ast_a"},
		Staged:        true,
	})
	require.NoError(t, err)
	assert.Contains(t, post.Caption, "virtually staged")
}

func TestDraftScheduledForSetsScheduledStatus(t *testing.T) {
	svc := newService()
	at := time.Now().Add(24 * time.Hour).UTC()

	post, err := svc.Draft(context.Background(), "org_1", DraftRequest{
		Platform:      PlatformLinkedIn,
		Brief:         "Open house this Sunday",
		ImageAssetIDs: []string{"ast_a"},
		ScheduledFor:  &at,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, post.Status)
	require.NotNil(t, post.ScheduledFor)
	assert.True(t, post.ScheduledFor.Equal(at))
}

func TestDraftRejectsInvalidInput(t *testing.T) {
	svc := newService()

	_, err := svc.Draft(context.Background(), "org_1", DraftRequest{
		Platform:      Platform("tiktok"),
		Brief:         "brief",
		ImageAssetIDs: []string{"ast_a"},
	})
	assert.ErrorIs(t, err, ErrInvalidPlatform)

	_, err = svc.Draft(context.Background(), "org_1", DraftRequest{
		Platform: PlatformInstagram,
		Brief:    "brief",
	})
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestDraftRejectsEmptyBrief(t *testing.T) {
	svc := newService()

	_, err := svc.Draft(context.Background(), "org_1", DraftRequest{
		Platform:      PlatformInstagram,
		Brief:         "   ",
		ImageAssetIDs: []string{"ast_a"},
	})
	assert.ErrorIs(t, err, compose.ErrEmptyCaption)
}

func TestListByOrgNewestFirstAndScoped(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, compose.NewMockComposer())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	_, err := svc.Draft(context.Background(), "org_1", DraftRequest{
		Platform:      PlatformInstagram,
		Brief:         "first",
		ImageAssetIDs: []string{"ast_a"},
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }
	second, err := svc.Draft(context.Background(), "org_1", DraftRequest{
		Platform:      PlatformInstagram,
		Brief:         "second",
		ImageAssetIDs: []string{"ast_b"},
	})
	require.NoError(t, err)

	_, err = svc.Draft(context.Background(), "org_2", DraftRequest{
		Platform:      PlatformInstagram,
		Brief:         "other org",
		ImageAssetIDs: []string{"ast_c"},
	})
	require.NoError(t, err)

	list, err := svc.ListByOrg(context.Background(), "org_1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
}
