package store

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/stillroom/clarity-engine/internal/domain"
)

// SupabaseConfig holds Supabase connection configuration.
type SupabaseConfig struct {
	URL        string
	ServiceKey string
}

// SupabaseStore implements Repository against a Supabase project. This is
// the driver used by the hosted deployment; table names match the
// project's schema.
type SupabaseStore struct {
	client *supabase.Client
}

// NewSupabase creates a new Supabase-backed repository.
func NewSupabase(cfg SupabaseConfig) (Repository, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("supabase service key is required")
	}

	client, err := supabase.NewClient(cfg.URL, cfg.ServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}

	return &SupabaseStore{client: client}, nil
}

type usageRow struct {
	SessionID    string `json:"session_id"`
	Date         string `json:"date"`
	MessageCount int    `json:"message_count"`
}

type sessionRow struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type messageRow struct {
	ID        string    `json:"id,omitempty"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type clarityLogRow struct {
	InputText        string `json:"input_text"`
	OutputText       string `json:"output_text"`
	EmotionalInsight string `json:"emotional_insight"`
	DailyThread      string `json:"daily_thread"`
	Plan             string `json:"plan"`
}

type memoryEventRow struct {
	ID        string    `json:"id,omitempty"`
	SessionID string    `json:"session_id"`
	EventType string    `json:"event_type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type subscriptionRow struct {
	SessionID            string    `json:"session_id"`
	StripeCustomerID     string    `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string    `json:"stripe_subscription_id,omitempty"`
	Status               string    `json:"status"`
	Plan                 string    `json:"plan"`
	UpdatedAt            time.Time `json:"updated_at,omitempty"`
}

// GetDailyUsage returns the message count for (sessionID, day).
func (s *SupabaseStore) GetDailyUsage(ctx context.Context, sessionID, day string) (int, error) {
	var rows []usageRow
	_, err := s.client.From("daily_usage").
		Select("message_count", "", false).
		Eq("session_id", sessionID).
		Eq("date", day).
		ExecuteTo(&rows)
	if err != nil {
		return 0, fmt.Errorf("get daily usage: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].MessageCount, nil
}

// UpsertDailyUsage records count for (sessionID, day).
func (s *SupabaseStore) UpsertDailyUsage(ctx context.Context, sessionID, day string, count int) error {
	row := usageRow{SessionID: sessionID, Date: day, MessageCount: count}
	_, _, err := s.client.From("daily_usage").
		Insert(row, true, "session_id,date", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("upsert daily usage: %w", err)
	}
	return nil
}

// EnsureSession registers a session id.
func (s *SupabaseStore) EnsureSession(ctx context.Context, sessionID string) error {
	row := sessionRow{ID: sessionID}
	_, _, err := s.client.From("conversation_sessions").
		Insert(row, true, "id", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

// SessionExists reports whether the session has been registered.
func (s *SupabaseStore) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	var rows []sessionRow
	_, err := s.client.From("conversation_sessions").
		Select("id", "", false).
		Eq("id", sessionID).
		ExecuteTo(&rows)
	if err != nil {
		return false, fmt.Errorf("check session exists: %w", err)
	}
	return len(rows) > 0, nil
}

// RecentMessages returns up to limit most recent turns, oldest-to-newest.
func (s *SupabaseStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	var rows []messageRow
	_, err := s.client.From("conversation_messages").
		Select("id, session_id, role, content, created_at", "", false).
		Eq("session_id", sessionID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	msgs := make([]domain.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		msgs = append(msgs, domain.Message{
			ID:        r.ID,
			SessionID: r.SessionID,
			Role:      domain.Role(r.Role),
			Content:   r.Content,
			CreatedAt: r.CreatedAt,
		})
	}
	return msgs, nil
}

// AppendMessages appends turns in order for a session.
func (s *SupabaseStore) AppendMessages(ctx context.Context, msgs []domain.Message) error {
	rows := make([]messageRow, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, messageRow{
			SessionID: m.SessionID,
			Role:      string(m.Role),
			Content:   m.Content,
		})
	}
	_, _, err := s.client.From("conversation_messages").
		Insert(rows, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("insert messages: %w", err)
	}
	return nil
}

// InsertClarityLog writes one audit row.
func (s *SupabaseStore) InsertClarityLog(ctx context.Context, entry *domain.ClarityLog) error {
	row := clarityLogRow{
		InputText:        entry.InputText,
		OutputText:       entry.OutputText,
		EmotionalInsight: entry.EmotionalInsight,
		DailyThread:      entry.DailyThread,
		Plan:             string(entry.Plan),
	}
	_, _, err := s.client.From("clarity_logs").
		Insert(row, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("insert clarity log: %w", err)
	}
	return nil
}

// AppendMemoryEvent appends to the session's emotional timeline.
func (s *SupabaseStore) AppendMemoryEvent(ctx context.Context, ev *domain.MemoryEvent) error {
	row := memoryEventRow{
		SessionID: ev.SessionID,
		EventType: ev.EventType,
		Content:   ev.Content,
	}
	_, _, err := s.client.From("session_memory_events").
		Insert(row, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("insert memory event: %w", err)
	}
	return nil
}

// RecentMemoryEvents returns up to limit most recent events, newest first.
func (s *SupabaseStore) RecentMemoryEvents(ctx context.Context, sessionID string, limit int) ([]domain.MemoryEvent, error) {
	var rows []memoryEventRow
	_, err := s.client.From("session_memory_events").
		Select("id, session_id, event_type, content, created_at", "", false).
		Eq("session_id", sessionID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("query memory events: %w", err)
	}

	events := make([]domain.MemoryEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, domain.MemoryEvent{
			ID:        r.ID,
			SessionID: r.SessionID,
			EventType: r.EventType,
			Content:   r.Content,
			CreatedAt: r.CreatedAt,
		})
	}
	return events, nil
}

// GetActiveSubscription returns the active subscription, or nil.
func (s *SupabaseStore) GetActiveSubscription(ctx context.Context, sessionID string) (*domain.Subscription, error) {
	var rows []subscriptionRow
	_, err := s.client.From("subscriptions").
		Select("session_id, stripe_customer_id, stripe_subscription_id, status, plan, updated_at", "", false).
		Eq("session_id", sessionID).
		Eq("status", "active").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &domain.Subscription{
		SessionID:            r.SessionID,
		StripeCustomerID:     r.StripeCustomerID,
		StripeSubscriptionID: r.StripeSubscriptionID,
		Status:               r.Status,
		Plan:                 domain.Plan(r.Plan),
		UpdatedAt:            r.UpdatedAt,
	}, nil
}

// UpsertSubscription creates or replaces the row keyed on session id.
func (s *SupabaseStore) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	row := subscriptionRow{
		SessionID:            sub.SessionID,
		StripeCustomerID:     sub.StripeCustomerID,
		StripeSubscriptionID: sub.StripeSubscriptionID,
		Status:               sub.Status,
		Plan:                 string(sub.Plan),
		UpdatedAt:            time.Now().UTC(),
	}
	_, _, err := s.client.From("subscriptions").
		Insert(row, true, "session_id", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// UpdateSubscriptionStatus syncs status and plan by provider subscription id.
func (s *SupabaseStore) UpdateSubscriptionStatus(ctx context.Context, stripeSubscriptionID, status string, plan domain.Plan) error {
	update := map[string]interface{}{
		"status":     status,
		"plan":       string(plan),
		"updated_at": time.Now().UTC(),
	}
	_, _, err := s.client.From("subscriptions").
		Update(update, "", "").
		Eq("stripe_subscription_id", stripeSubscriptionID).
		Execute()
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}

// Ping verifies store connectivity with a minimal read.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	var rows []sessionRow
	_, err := s.client.From("conversation_sessions").
		Select("id", "", false).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

// Close is a no-op; the underlying client is stateless HTTP.
func (s *SupabaseStore) Close() error {
	return nil
}
