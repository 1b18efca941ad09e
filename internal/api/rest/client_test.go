package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/evaldash/internal/api"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestFetchNotificationsFollowsCursor(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var pages atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		assert.Equal(t, NotificationsPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		assert.Equal(t, "parent-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, []string{"s1", "s2"}, r.URL.Query()["school_id"])

		if r.URL.Query().Get("cursor") == "" {
			writeJSON(t, w, http.StatusOK, ListResponse{
				Notifications: []api.RawNotification{{ID: "a", Type: "achievement", Timestamp: ts}},
				Next:          "page-2",
			})
			return
		}
		assert.Equal(t, "page-2", r.URL.Query().Get("cursor"))
		writeJSON(t, w, http.StatusOK, ListResponse{
			Notifications: []api.RawNotification{{ID: "b", Type: "chatMessage", Timestamp: ts}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret")
	got, err := c.FetchNotifications(context.Background(), api.UserScope{
		UserID:    "parent-1",
		Role:      "parent",
		SchoolIDs: []string{"s1", "s2"},
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "chatMessage", got[1].Type)
	assert.True(t, got[0].Timestamp.Equal(ts))
	assert.EqualValues(t, 2, pages.Load())
}

func TestMutationEndpoints(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		calls = append(calls, r.URL.Path)
		if r.URL.Path == ReadAllPath {
			var body ReadAllRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"a", "b"}, body.IDs)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			writeJSON(t, w, http.StatusOK, ReadAllResponse{Updated: 2})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	ctx := context.Background()

	require.NoError(t, c.MarkRead(ctx, "a"))
	require.NoError(t, c.MarkUnread(ctx, "a"))
	require.NoError(t, c.Archive(ctx, "a b"))
	require.NoError(t, c.MarkAllRead(ctx, []string{"a", "b"}))
	require.NoError(t, c.MarkAllRead(ctx, nil))

	assert.Equal(t, []string{
		"/api/v1/notifications/a/read",
		"/api/v1/notifications/a/unread",
		"/api/v1/notifications/a b/archive",
		ReadAllPath,
	}, calls)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.True(t, api.IsAuthError(err))
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, api.ErrNotFound)
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				assert.True(t, IsServerError(err))
				assert.Contains(t, err.Error(), "database is locked")
			},
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			check: func(t *testing.T, err error) {
				assert.False(t, IsServerError(err))
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusBadRequest, se.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.status, ErrorResponse{Error: "database is locked"})
			}))
			defer srv.Close()

			err := NewClient(srv.URL, "t").MarkRead(context.Background(), "a")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRetriesOnRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL, "t").MarkRead(context.Background(), "a"))
	assert.EqualValues(t, 3, hits.Load())
}

func TestRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "t", WithMaxRetries(1)).Archive(context.Background(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries (1) exceeded")
}

func TestRetryAfterDuration(t *testing.T) {
	withHeader := &http.Response{Header: http.Header{"Retry-After": []string{"7"}}}
	assert.Equal(t, 7*time.Second, retryAfterDuration(withHeader, 0))

	bare := &http.Response{Header: http.Header{}}
	assert.Equal(t, time.Second, retryAfterDuration(bare, 0))
	assert.Equal(t, 4*time.Second, retryAfterDuration(bare, 2))
	assert.Equal(t, 30*time.Second, retryAfterDuration(bare, 10))
}
