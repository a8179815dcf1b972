// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/stillroom/clarity-engine/internal/domain"
)

// Repository defines keyed access to the service's persisted collections.
// All operations are simple get/upsert/append; no multi-row transactions.
type Repository interface {
	// GetDailyUsage returns the message count for (sessionID, day).
	// An absent record is count 0, not an error.
	GetDailyUsage(ctx context.Context, sessionID, day string) (int, error)

	// UpsertDailyUsage records count for (sessionID, day), creating or
	// replacing the single record for that composite key.
	UpsertDailyUsage(ctx context.Context, sessionID, day string, count int) error

	// EnsureSession registers a session id so its turns can be persisted.
	// Idempotent.
	EnsureSession(ctx context.Context, sessionID string) error

	// SessionExists reports whether the session has been registered.
	SessionExists(ctx context.Context, sessionID string) (bool, error)

	// RecentMessages returns up to limit most recent turns for a session,
	// ordered oldest-to-newest. Unknown sessions yield an empty slice.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)

	// AppendMessages appends turns in order for a session.
	AppendMessages(ctx context.Context, msgs []domain.Message) error

	// InsertClarityLog writes one audit row per generated reflection.
	InsertClarityLog(ctx context.Context, entry *domain.ClarityLog) error

	// AppendMemoryEvent appends to a session's emotional timeline.
	AppendMemoryEvent(ctx context.Context, ev *domain.MemoryEvent) error

	// RecentMemoryEvents returns up to limit most recent timeline events,
	// newest first.
	RecentMemoryEvents(ctx context.Context, sessionID string, limit int) ([]domain.MemoryEvent, error)

	// GetActiveSubscription returns the active subscription for a session,
	// or nil if the session has none.
	GetActiveSubscription(ctx context.Context, sessionID string) (*domain.Subscription, error)

	// UpsertSubscription creates or replaces the subscription row keyed on
	// session id.
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) error

	// UpdateSubscriptionStatus syncs status and plan for the row keyed by
	// the provider's subscription id.
	UpdateSubscriptionStatus(ctx context.Context, stripeSubscriptionID, status string, plan domain.Plan) error

	// Ping verifies store connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
