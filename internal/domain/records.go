package domain

import "time"

// ClarityLog is one audit row per generated reflection: the input text,
// the four reply fields, and the plan the request ran under.
type ClarityLog struct {
	ID               string
	InputText        string
	OutputText       string
	EmotionalInsight string
	DailyThread      string
	Plan             Plan
	CreatedAt        time.Time
}

// MemoryEvent is an append-only note on a session's emotional timeline,
// derived from a reply's thread line.
type MemoryEvent struct {
	ID        string
	SessionID string
	EventType string
	Content   string
	CreatedAt time.Time
}

// EventTypeEmotionalThread marks memory events derived from the daily
// thread line of a reply.
const EventTypeEmotionalThread = "emotional_thread"

// Subscription mirrors the billing provider's view of a session. Absence
// of a row, or any status other than "active", means the free plan.
type Subscription struct {
	SessionID            string
	StripeCustomerID     string
	StripeSubscriptionID string
	Status               string
	Plan                 Plan
	UpdatedAt            time.Time
}

// Active reports whether the subscription grants the pro plan.
func (s *Subscription) Active() bool {
	return s != nil && s.Status == "active"
}
