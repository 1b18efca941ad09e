// Package api defines the boundary between the notification store and
// whichever remote system of record holds a user's notifications.
package api

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by backends when an id is unknown to the server.
var ErrNotFound = errors.New("notification not found")

// AuthError indicates that authentication has failed or expired for a
// backend. It is returned by clients when a 401 response (or the IMAP
// equivalent) is received.
type AuthError struct {
	Backend string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Backend, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// UserScope identifies whose notifications are being fetched.
type UserScope struct {
	UserID    string
	Role      string
	SchoolIDs []string
}

// RawNotification is a notification as delivered by a backend. Type is
// left as the raw wire string; the store decides what to do with values
// it does not recognise.
type RawNotification struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	SchoolID    string    `json:"school_id,omitempty"`
	SchoolName  string    `json:"school_name"`
	StudentName string    `json:"student_name,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Read        bool      `json:"read"`
	Archived    bool      `json:"archived"`
}

// NotificationAPI is the contract every notification backend implements.
type NotificationAPI interface {
	// FetchNotifications returns the full notification set for scope.
	FetchNotifications(ctx context.Context, scope UserScope) ([]RawNotification, error)

	// MarkRead flags a single notification as read.
	MarkRead(ctx context.Context, id string) error

	// MarkUnread clears the read flag of a single notification.
	MarkUnread(ctx context.Context, id string) error

	// Archive hides a notification from every view. It is not reversible
	// through this interface.
	Archive(ctx context.Context, id string) error

	// MarkAllRead flags every listed notification as read in one call.
	MarkAllRead(ctx context.Context, ids []string) error
}
