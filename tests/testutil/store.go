package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/evaldash/internal/model"
	"github.com/nhle/evaldash/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Epoch is the reference time fixtures are dated against.
var Epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Notification returns a minimal valid notification aged age before Epoch.
func Notification(id string, t model.Type, age time.Duration) model.Notification {
	return model.Notification{
		ID:         id,
		Type:       t,
		SchoolID:   "s1",
		SchoolName: "Riverside Primary",
		Title:      "Title " + id,
		Timestamp:  Epoch.Add(-age),
	}
}

// Seed inserts every notification into s as a broadcast.
func Seed(t *testing.T, s store.Store, notifications ...model.Notification) {
	t.Helper()

	for _, n := range notifications {
		if _, err := s.CreateNotification(context.Background(), n); err != nil {
			t.Fatalf("seeding notification %s: %v", n.ID, err)
		}
	}
}
