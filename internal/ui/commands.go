package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/evaldash/internal/api"
	"github.com/nhle/evaldash/internal/model"
	"github.com/nhle/evaldash/internal/notify"
)

// NotificationStore is the part of *notify.Store the views use.
type NotificationStore interface {
	ScopedRecords() []model.Notification
	TypeCounts() notify.Counts
	UnreadCount() int
	Status() (notify.Status, error)

	Refresh(ctx context.Context) error
	MarkAsRead(ctx context.Context, id string) error
	MarkAsUnread(ctx context.Context, id string) error
	ArchiveNotification(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) (int, error)
}

// StoreChangedMsg is delivered whenever the shared store changes.
type StoreChangedMsg struct{}

// RefreshRequestedMsg asks the owner of the poller for an immediate refresh.
type RefreshRequestedMsg struct{}

// LoadResultMsg is sent when a direct load finishes.
type LoadResultMsg struct {
	Err error
}

// MutationResultMsg is sent when a store mutation settles. On failure the
// store has already rolled the change back.
type MutationResultMsg struct {
	Op    notify.Op
	ID    string
	Count int
	Err   error
}

// WaitForChange returns a tea.Cmd that blocks until ch signals. It
// returns nil once the subscription is closed.
func WaitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return StoreChangedMsg{}
	}
}

// Load returns a tea.Cmd that reloads the store.
func Load(s NotificationStore) tea.Cmd {
	return func() tea.Msg {
		return LoadResultMsg{Err: s.Refresh(context.Background())}
	}
}

// RequestRefresh is a tea.Cmd that emits RefreshRequestedMsg.
func RequestRefresh() tea.Msg {
	return RefreshRequestedMsg{}
}

// MarkRead returns a tea.Cmd that marks id as read.
func MarkRead(s NotificationStore, id string) tea.Cmd {
	return func() tea.Msg {
		return MutationResultMsg{Op: notify.OpMarkRead, ID: id, Err: s.MarkAsRead(context.Background(), id)}
	}
}

// MarkUnread returns a tea.Cmd that marks id as unread.
func MarkUnread(s NotificationStore, id string) tea.Cmd {
	return func() tea.Msg {
		return MutationResultMsg{Op: notify.OpMarkUnread, ID: id, Err: s.MarkAsUnread(context.Background(), id)}
	}
}

// Archive returns a tea.Cmd that archives id.
func Archive(s NotificationStore, id string) tea.Cmd {
	return func() tea.Msg {
		return MutationResultMsg{Op: notify.OpArchive, ID: id, Err: s.ArchiveNotification(context.Background(), id)}
	}
}

// MarkAllRead returns a tea.Cmd that marks every visible notification read.
func MarkAllRead(s NotificationStore) tea.Cmd {
	return func() tea.Msg {
		n, err := s.MarkAllAsRead(context.Background())
		return MutationResultMsg{Op: notify.OpMarkAllRead, Count: n, Err: err}
	}
}

// ErrorText turns a store error into a short message for the user.
func ErrorText(err error) string {
	var me *notify.MutationError
	switch {
	case err == nil:
		return ""
	case api.IsAuthError(err):
		return "Sign-in expired. Press c to reconfigure."
	case errors.As(err, &me):
		return opFailure(me.Op) + " Changes reverted."
	case notify.IsFetchError(err):
		return "Couldn't load notifications. Showing last known data."
	case notify.IsScopeViolation(err), errors.Is(err, notify.ErrNotFound):
		return "That notification is no longer available."
	case errors.Is(err, notify.ErrClosed):
		return "Session ended."
	default:
		return "Something went wrong: " + err.Error()
	}
}

func opFailure(op notify.Op) string {
	switch op {
	case notify.OpMarkRead:
		return "Couldn't mark as read."
	case notify.OpMarkUnread:
		return "Couldn't mark as unread."
	case notify.OpArchive:
		return "Couldn't archive."
	case notify.OpMarkAllRead:
		return "Couldn't mark all as read."
	default:
		return "Update failed."
	}
}
