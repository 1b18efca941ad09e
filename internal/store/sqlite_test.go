package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/evaldash/internal/api"
	"github.com/nhle/evaldash/internal/model"
	"github.com/nhle/evaldash/internal/store"
	"github.com/nhle/evaldash/tests/testutil"
)

func TestCreateNotificationGeneratesID(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id, err := s.CreateNotification(ctx, model.Notification{
		Type:       model.TypeAchievement,
		SchoolName: "مدرسة الأمل",
		Title:      "Science olympiad",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.GetNotification(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.TypeAchievement, got.Type)
	assert.Equal(t, "مدرسة الأمل", got.SchoolName)
	assert.False(t, got.Timestamp.IsZero())
}

func TestCreateNotificationValidates(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNotification(ctx, model.Notification{Type: "broadcast", Title: "x"})
	assert.ErrorIs(t, err, model.ErrUnknownType)

	_, err = s.CreateNotification(ctx, model.Notification{Type: model.TypePerformance, Title: "  "})
	assert.Error(t, err)
}

func TestGetNotificationNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.GetNotification(context.Background(), "missing")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestListNotificationsOrderAndFilters(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	other := testutil.Notification("c", model.TypeImprovement, 3*time.Hour)
	other.SchoolID = "s2"
	general := testutil.Notification("d", model.TypePerformance, 4*time.Hour)
	general.SchoolID = ""
	gone := testutil.Notification("e", model.TypePerformance, 5*time.Hour)
	gone.Archived = true

	testutil.Seed(t, s,
		testutil.Notification("b", model.TypeAchievement, time.Hour),
		testutil.Notification("a", model.TypeAchievement, time.Hour),
		other, general, gone,
	)

	all, err := s.ListNotifications(ctx, store.NotificationFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, idsOf(all))

	active, err := s.ListNotifications(ctx, store.NotificationFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, idsOf(active))

	scoped, err := s.ListNotifications(ctx, store.NotificationFilter{SchoolIDs: []string{"s1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d"}, idsOf(scoped))

	limited, err := s.ListNotifications(ctx, store.NotificationFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListNotificationsRecipients(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNotification(ctx, testutil.Notification("mine", model.TypeChatMessage, 0), "parent-1")
	require.NoError(t, err)
	_, err = s.CreateNotification(ctx, testutil.Notification("theirs", model.TypeChatMessage, time.Hour), "parent-2")
	require.NoError(t, err)
	testutil.Seed(t, s, testutil.Notification("everyone", model.TypePerformance, 2*time.Hour))

	got, err := s.ListNotifications(ctx, store.NotificationFilter{UserID: "parent-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mine", "everyone"}, idsOf(got))
}

func TestFlagMutations(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	testutil.Seed(t, s, testutil.Notification("a", model.TypeAchievement, 0))

	require.NoError(t, s.MarkRead(ctx, "a"))
	got, err := s.GetNotification(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.Read)

	// Repeating a mutation is not an error.
	require.NoError(t, s.MarkRead(ctx, "a"))

	require.NoError(t, s.MarkUnread(ctx, "a"))
	got, _ = s.GetNotification(ctx, "a")
	assert.False(t, got.Read)

	require.NoError(t, s.Archive(ctx, "a"))
	got, _ = s.GetNotification(ctx, "a")
	assert.True(t, got.Archived)

	assert.ErrorIs(t, s.MarkRead(ctx, "missing"), api.ErrNotFound)
	assert.ErrorIs(t, s.Archive(ctx, "missing"), api.ErrNotFound)
}

func TestMarkAllReadIsAtomic(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	testutil.Seed(t, s,
		testutil.Notification("a", model.TypeAchievement, 0),
		testutil.Notification("b", model.TypeAchievement, time.Hour),
		testutil.Notification("c", model.TypeAchievement, 2*time.Hour),
	)

	err := s.MarkAllRead(ctx, []string{"a", "missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrNotFound))

	a, _ := s.GetNotification(ctx, "a")
	assert.False(t, a.Read, "failed bulk update must not leave partial changes")

	require.NoError(t, s.MarkAllRead(ctx, []string{"a", "b"}))
	for id, want := range map[string]bool{"a": true, "b": true, "c": false} {
		n, _ := s.GetNotification(ctx, id)
		assert.Equal(t, want, n.Read, id)
	}

	require.NoError(t, s.MarkAllRead(ctx, nil))
}

func TestFetchNotificationsIncludesArchived(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	gone := testutil.Notification("b", model.TypeImprovement, time.Hour)
	gone.Archived = true
	testutil.Seed(t, s, testutil.Notification("a", model.TypeAchievement, 0), gone)

	raws, err := s.FetchNotifications(ctx, api.UserScope{UserID: "parent-1", SchoolIDs: []string{"s1"}})
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "achievement", raws[0].Type)
	assert.True(t, raws[1].Archived)
}

func TestDeleteNotification(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNotification(ctx, testutil.Notification("a", model.TypeAchievement, 0), "parent-1")
	require.NoError(t, err)
	require.NoError(t, s.DeleteNotification(ctx, "a"))

	_, err = s.GetNotification(ctx, "a")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func idsOf(notifications []model.Notification) []string {
	out := make([]string, len(notifications))
	for i, n := range notifications {
		out[i] = n.ID
	}
	return out
}
