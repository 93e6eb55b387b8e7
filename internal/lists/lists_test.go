package lists

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/clearly/internal/affiliate"
	"github.com/jdholdren/clearly/internal/clearly"
	clerrs "github.com/jdholdren/clearly/internal/errors"
	"github.com/jdholdren/clearly/internal/migrations"
	"github.com/jdholdren/clearly/internal/sqlite"
	"github.com/jdholdren/clearly/internal/tracker"
)

func newTestRepo(t *testing.T) sqlite.Repo {
	t.Helper()

	dbx, err := sqlite.Open(filepath.Join(t.TempDir(), "clearly.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, migrations.Run(dbx))

	return sqlite.New(dbx)
}

var normalizer = affiliate.NewNormalizer(affiliate.Config{Amazon: "clearly-20"})

func allEvents(t *testing.T, repo sqlite.Repo, listID string) []clearly.SubscriptionEvent {
	t.Helper()

	evs, err := repo.Events(context.Background(), clearly.EventWindow{ListID: listID, Since: clearly.At(time.Time{})})
	require.NoError(t, err)
	return evs
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()

	var sErr *clerrs.Error
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, status, sErr.Status)
}

func TestItemLifecycleRecordsEvents(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewService(repo, tracker.New(repo), normalizer)

	l, err := svc.CreateList(ctx, "  Birthday ")
	require.NoError(t, err)
	assert.Equal(t, "Birthday", l.Name)
	assert.Len(t, l.Token, 64)

	item, err := svc.AddItem(ctx, l.ID, AddItemArgs{
		Name:        "Lego",
		Description: `<p>The big one</p><script>alert(1)</script>`,
		URL:         "https://www.amazon.com/dp/B1?utm_source=x",
	})
	require.NoError(t, err)
	require.NotNil(t, item.URL)
	assert.Equal(t, "https://www.amazon.com/dp/B1?utm_source=x", *item.URL)
	require.NotNil(t, item.FormattedURL)
	assert.Equal(t, "https://www.amazon.com/dp/B1?tag=clearly-20", *item.FormattedURL)
	require.NotNil(t, item.Description)
	assert.NotContains(t, *item.Description, "<script>")

	claimed, err := svc.ClaimItem(ctx, l.Token, item.ID, "")
	require.NoError(t, err)
	require.NotNil(t, claimed.ClaimedBy)
	assert.Equal(t, "Anonymous", *claimed.ClaimedBy)

	_, err = svc.ClaimItem(ctx, l.Token, item.ID, "Sam")
	assert.ErrorIs(t, err, clearly.ErrConflict)

	_, err = svc.UnclaimItem(ctx, l.Token, item.ID)
	require.NoError(t, err)
	_, err = svc.ClaimItem(ctx, l.Token, item.ID, "Sam")
	require.NoError(t, err)

	dest, err := svc.VisitItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://www.amazon.com/dp/B1?tag=clearly-20", dest)

	require.NoError(t, svc.RemoveItem(ctx, item.ID))

	evs := allEvents(t, repo, l.ID)
	var types []clearly.EventType
	for _, ev := range evs {
		types = append(types, ev.EventType)
		assert.Equal(t, "Lego", ev.ItemName)
		assert.Equal(t, item.ID, ev.ItemID)
	}
	assert.Equal(t, []clearly.EventType{
		clearly.EventItemAdded,
		clearly.EventItemClaimed,
		clearly.EventItemUnclaimed,
		clearly.EventItemClaimed,
		clearly.EventItemRemoved,
	}, types)
	assert.Equal(t, "Anonymous", *evs[1].Metadata.ClaimedBy())
	assert.Equal(t, "Sam", *evs[3].Metadata.ClaimedBy())
}

type failingTracker struct{}

func (failingTracker) ItemAdded(context.Context, string, string, string) error {
	return errors.New("tracker down")
}

func (failingTracker) ItemRemoved(context.Context, string, string, string) error {
	return errors.New("tracker down")
}

func (failingTracker) ItemClaimed(context.Context, string, string, string, string) error {
	return errors.New("tracker down")
}

func (failingTracker) ItemUnclaimed(context.Context, string, string, string) error {
	return errors.New("tracker down")
}

func TestTrackerFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewService(repo, failingTracker{}, normalizer)

	l, err := svc.CreateList(ctx, "Birthday")
	require.NoError(t, err)
	item, err := svc.AddItem(ctx, l.ID, AddItemArgs{Name: "Lego"})
	require.NoError(t, err)
	_, err = svc.ClaimItem(ctx, l.Token, item.ID, "Sam")
	require.NoError(t, err)

	pub, err := svc.PublicList(ctx, l.Token)
	require.NoError(t, err)
	require.Len(t, pub.Items, 1)
	assert.True(t, pub.Items[0].Claimed())
	assert.Empty(t, allEvents(t, repo, l.ID))
}

// Cancels the request context right after each item change is committed, as
// if the client hung up.
type hangupRepo struct {
	clearly.ListRepo
	cancel context.CancelFunc
}

func (r hangupRepo) InsertItem(ctx context.Context, item clearly.NewItem) (clearly.Item, error) {
	defer r.cancel()
	return r.ListRepo.InsertItem(ctx, item)
}

func (r hangupRepo) ClaimItem(ctx context.Context, id, claimedBy string) error {
	defer r.cancel()
	return r.ListRepo.ClaimItem(ctx, id, claimedBy)
}

func (r hangupRepo) UnclaimItem(ctx context.Context, id string) error {
	defer r.cancel()
	return r.ListRepo.UnclaimItem(ctx, id)
}

func (r hangupRepo) DeleteItem(ctx context.Context, id string) error {
	defer r.cancel()
	return r.ListRepo.DeleteItem(ctx, id)
}

func TestEventsSurviveClientHangup(t *testing.T) {
	repo := newTestRepo(t)
	l, err := NewService(repo, tracker.New(repo), normalizer).CreateList(context.Background(), "Birthday")
	require.NoError(t, err)

	// Each change gets its own request context, cancelled once the change lands.
	request := func() (context.Context, Service) {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		return ctx, NewService(hangupRepo{ListRepo: repo, cancel: cancel}, tracker.New(repo), normalizer)
	}

	ctx, svc := request()
	item, err := svc.AddItem(ctx, l.ID, AddItemArgs{Name: "Lego"})
	require.NoError(t, err)

	// The read after the change sees the cancelled context, the change itself is in.
	ctx, svc = request()
	_, _ = svc.ClaimItem(ctx, l.Token, item.ID, "Sam")
	ctx, svc = request()
	_, _ = svc.UnclaimItem(ctx, l.Token, item.ID)
	ctx, svc = request()
	require.NoError(t, svc.RemoveItem(ctx, item.ID))

	var types []clearly.EventType
	for _, ev := range allEvents(t, repo, l.ID) {
		types = append(types, ev.EventType)
	}
	assert.Equal(t, []clearly.EventType{
		clearly.EventItemAdded,
		clearly.EventItemClaimed,
		clearly.EventItemUnclaimed,
		clearly.EventItemRemoved,
	}, types)
}

func TestClaimValidation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewService(repo, tracker.New(repo), normalizer)

	l, err := svc.CreateList(ctx, "Birthday")
	require.NoError(t, err)
	other, err := svc.CreateList(ctx, "Other")
	require.NoError(t, err)
	item, err := svc.AddItem(ctx, l.ID, AddItemArgs{Name: "Lego"})
	require.NoError(t, err)

	_, err = svc.ClaimItem(ctx, l.Token, item.ID, "fuck this")
	requireStatus(t, err, http.StatusUnprocessableEntity)

	_, err = svc.ClaimItem(ctx, other.Token, item.ID, "Sam")
	assert.ErrorIs(t, err, clearly.ErrNotFound, "claims go through the item's own list")

	_, err = svc.ClaimItem(ctx, "bogus", item.ID, "Sam")
	assert.ErrorIs(t, err, clearly.ErrNotFound)

	_, err = svc.VisitItem(ctx, item.ID)
	assert.ErrorIs(t, err, clearly.ErrNotFound, "no link to visit")

	_, err = svc.AddItem(ctx, "missing", AddItemArgs{Name: "Lego"})
	assert.ErrorIs(t, err, clearly.ErrNotFound)

	_, err = svc.AddItem(ctx, l.ID, AddItemArgs{Name: "  "})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = svc.CreateList(ctx, "")
	requireStatus(t, err, http.StatusBadRequest)
}

func TestPublicListCountsViews(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewService(repo, tracker.New(repo), normalizer)

	l, err := svc.CreateList(ctx, "Birthday")
	require.NoError(t, err)

	for range 3 {
		_, err := svc.PublicList(ctx, l.Token)
		require.NoError(t, err)
	}

	l, err = repo.List(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, l.ViewCount)

	_, err = svc.PublicList(ctx, "nope")
	assert.ErrorIs(t, err, clearly.ErrNotFound)
}
