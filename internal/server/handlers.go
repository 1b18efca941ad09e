package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nhle/evaldash/internal/api"
	"github.com/nhle/evaldash/internal/api/rest"
	"github.com/nhle/evaldash/internal/notify"
	"github.com/nhle/evaldash/internal/store"
)

// listNotifications serves GET /api/v1/notifications. With a limit the
// response is paged and Next carries the offset of the following page.
func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(q.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	notifications, err := s.store.ListNotifications(r.Context(), store.NotificationFilter{
		UserID:          q.Get("user_id"),
		SchoolIDs:       q["school_id"],
		IncludeArchived: true,
	})
	if err != nil {
		s.internalError(w, "listing notifications", err)
		return
	}

	resp := rest.ListResponse{Notifications: []api.RawNotification{}}
	if offset > len(notifications) {
		offset = len(notifications)
	}
	page := notifications[offset:]
	if limit > 0 && len(page) > limit {
		page = page[:limit]
		resp.Next = strconv.Itoa(offset + limit)
	}
	for _, n := range page {
		resp.Notifications = append(resp.Notifications, store.ToRaw(n))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, notify.OpMarkRead, s.store.MarkRead)
}

func (s *Server) markUnread(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, notify.OpMarkUnread, s.store.MarkUnread)
}

func (s *Server) archive(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, notify.OpArchive, s.store.Archive)
}

func (s *Server) mutate(
	w http.ResponseWriter,
	r *http.Request,
	op notify.Op,
	fn func(ctx context.Context, id string) error,
) {
	id := chi.URLParam(r, "id")
	if err := fn(r.Context(), id); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		s.internalError(w, string(op), err)
		return
	}

	s.metrics.mutations.WithLabelValues(string(op)).Inc()
	w.WriteHeader(http.StatusNoContent)
}

// markAllRead serves POST /api/v1/notifications/read-all.
func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	var req rest.ReadAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.MarkAllRead(r.Context(), req.IDs); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.internalError(w, "mark all read", err)
		return
	}

	s.metrics.mutations.WithLabelValues(string(notify.OpMarkAllRead)).Add(float64(len(req.IDs)))
	writeJSON(w, http.StatusOK, rest.ReadAllResponse{Updated: len(req.IDs)})
}

func (s *Server) internalError(w http.ResponseWriter, what string, err error) {
	s.logger.Error("request failed", zap.String("op", what), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("not a non-negative integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, rest.ErrorResponse{Error: msg})
}
