package store

import (
	"context"

	"github.com/nhle/evaldash/internal/api"
	"github.com/nhle/evaldash/internal/model"
)

// NotificationFilter controls which rows ListNotifications returns.
type NotificationFilter struct {
	// UserID limits results to notifications addressed to this user, plus
	// broadcasts that have no recipients at all. Empty means every user.
	UserID string

	// SchoolIDs limits results to these schools plus general notices
	// without a school. Empty means every school.
	SchoolIDs []string

	IncludeArchived bool
	Limit           int
}

// Store defines the persistence interface for notifications. Every Store
// is also a NotificationAPI so the dashboard can run directly against a
// local database.
type Store interface {
	api.NotificationAPI

	// CreateNotification inserts n and addresses it to recipients. With no
	// recipients the notification is a broadcast.
	CreateNotification(ctx context.Context, n model.Notification, recipients ...string) (string, error)
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error)
	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	DeleteNotification(ctx context.Context, id string) error
}
