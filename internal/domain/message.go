// Package domain contains the core types shared across the service.
package domain

import (
	"regexp"
	"time"
)

// Role identifies which side of the conversation produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one persisted conversation turn for a session.
// Turns for a session are totally ordered by CreatedAt.
type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Session ids are generated client-side with no server-side identity proof.
// They are opaque capability tokens: we validate shape, nothing more.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ValidSessionID reports whether s has an acceptable session id shape.
func ValidSessionID(s string) bool {
	return sessionIDPattern.MatchString(s)
}
