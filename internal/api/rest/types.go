package rest

import "github.com/nhle/evaldash/internal/api"

// Paths served by the notifications REST API.
const (
	NotificationsPath = "/api/v1/notifications"
	ReadAllPath       = NotificationsPath + "/read-all"
)

// ListResponse is the body of GET /api/v1/notifications. Next is an opaque
// cursor for the following page, empty on the last page.
type ListResponse struct {
	Notifications []api.RawNotification `json:"notifications"`
	Next          string                `json:"next,omitempty"`
}

// ReadAllRequest is the body of POST /api/v1/notifications/read-all.
type ReadAllRequest struct {
	IDs []string `json:"ids"`
}

// ReadAllResponse reports how many notifications a read-all call updated.
type ReadAllResponse struct {
	Updated int `json:"updated"`
}

// ErrorResponse is the JSON error envelope returned with every non-2xx
// response.
type ErrorResponse struct {
	Error string `json:"error"`
}
