package notify

import "github.com/nhle/evaldash/internal/model"

// Scope decides whether a record belongs to the current session. A nil
// Scope admits everything.
type Scope func(model.Notification) bool

// SchoolScope admits notifications for the given schools plus general
// notices that carry no school. With no ids it returns nil.
func SchoolScope(schoolIDs ...string) Scope {
	if len(schoolIDs) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(schoolIDs))
	for _, id := range schoolIDs {
		allowed[id] = struct{}{}
	}

	return func(n model.Notification) bool {
		if n.SchoolID == "" {
			return true
		}
		_, ok := allowed[n.SchoolID]
		return ok
	}
}

func (s Scope) admits(n model.Notification) bool {
	return s == nil || s(n)
}
