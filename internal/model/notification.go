package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownType is returned by ParseType for values outside the closed set.
var ErrUnknownType = errors.New("unknown notification type")

// Type identifies what kind of event a notification reports.
type Type string

const (
	TypePerformance    Type = "performance"
	TypeAchievement    Type = "achievement"
	TypeImprovement    Type = "improvement"
	TypePrincipalReply Type = "principalReply"
	TypeChatMessage    Type = "chatMessage"

	// TypeAll is the identity filter. It is never the type of a record.
	TypeAll Type = "all"
)

// Types lists the concrete notification types in display order.
var Types = []Type{
	TypePerformance,
	TypeAchievement,
	TypeImprovement,
	TypePrincipalReply,
	TypeChatMessage,
}

// typeAliases maps lower-cased wire spellings to their canonical type.
var typeAliases = map[string]Type{
	"performance":     TypePerformance,
	"achievement":     TypeAchievement,
	"improvement":     TypeImprovement,
	"principalreply":  TypePrincipalReply,
	"principal_reply": TypePrincipalReply,
	"reply":           TypePrincipalReply,
	"chatmessage":     TypeChatMessage,
	"chat_message":    TypeChatMessage,
	"chat":            TypeChatMessage,
}

// ParseType converts a wire value into a concrete Type. Matching is
// case-insensitive and accepts a few legacy spellings. "all" is rejected
// because it is a filter, not a record type.
func ParseType(s string) (Type, error) {
	if t, ok := typeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// ParseFilter is like ParseType but also accepts "all" (and the empty string).
func ParseFilter(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(TypeAll):
		return TypeAll, nil
	}
	return ParseType(s)
}

// Valid reports whether t is one of the concrete types.
func (t Type) Valid() bool {
	for _, c := range Types {
		if c == t {
			return true
		}
	}
	return false
}

// Notification is a single notice addressed to a parent, staff member or
// supervisor about a school or student.
type Notification struct {
	// ID is stable for the lifetime of the record.
	ID string `json:"id"`

	Type Type `json:"type"`

	// SchoolID is empty for general/system notices.
	SchoolID   string `json:"school_id,omitempty"`
	SchoolName string `json:"school_name"`

	// StudentName is set when the notice concerns a specific child.
	StudentName string `json:"student_name,omitempty"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// Icon is a presentation hint only.
	Icon string `json:"icon,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	Read     bool `json:"read"`
	Archived bool `json:"archived"`
}

// Before reports whether n sorts before o in the default view:
// newest first, ties broken by ascending ID.
func (n Notification) Before(o Notification) bool {
	if !n.Timestamp.Equal(o.Timestamp) {
		return n.Timestamp.After(o.Timestamp)
	}
	return n.ID < o.ID
}
