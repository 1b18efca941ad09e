package store_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/evaldash/internal/model"
	"github.com/nhle/evaldash/internal/store"
	"github.com/nhle/evaldash/tests/testutil"
)

const fixturesJSON = `[
  {"id": "f1", "type": "achievement", "school_id": "s1", "school_name": "Riverside",
   "title": "Science fair", "timestamp": "2026-03-01T09:00:00Z"},
  {"type": "chat", "school_id": "s1", "school_name": "Riverside",
   "title": "Message from teacher", "timestamp": "2026-03-01T08:00:00Z",
   "recipients": ["parent-1"]},
  {"type": "principal_reply", "school_name": "District office",
   "title": "Reply to your request", "timestamp": "2026-03-01T07:00:00Z", "read": true}
]`

func TestDecodeAndSeedFixtures(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	fixtures, err := store.DecodeFixtures(strings.NewReader(fixturesJSON))
	require.NoError(t, err)
	require.Len(t, fixtures, 3)

	ids, err := store.Seed(ctx, s, fixtures)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, "f1", ids[0])
	assert.NotEmpty(t, ids[1])

	chat, err := s.GetNotification(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, model.TypeChatMessage, chat.Type)

	mine, err := s.ListNotifications(ctx, store.NotificationFilter{UserID: "parent-1"})
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	theirs, err := s.ListNotifications(ctx, store.NotificationFilter{UserID: "parent-2"})
	require.NoError(t, err)
	assert.Len(t, theirs, 2)
}

func TestDecodeFixturesRejectsUnknownType(t *testing.T) {
	_, err := store.DecodeFixtures(strings.NewReader(`[{"type": "gossip", "title": "x"}]`))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnknownType)
}

func TestDecodeFixturesRejectsMalformedJSON(t *testing.T) {
	_, err := store.DecodeFixtures(strings.NewReader(`{"type": "achievement"}`))
	assert.ErrorContains(t, err, "decoding fixtures")
}

func TestSeedStopsAtFirstFailure(t *testing.T) {
	s := testutil.NewTestStore(t)

	ids, err := store.Seed(context.Background(), s, []store.Fixture{
		{Type: "performance", Title: "Report"},
		{Type: "performance", Title: ""},
		{Type: "performance", Title: "Never inserted"},
	})
	require.Error(t, err)
	assert.Len(t, ids, 1)
}
