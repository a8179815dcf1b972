package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/stillroom/clarity-engine/internal/domain"
)

// SQLiteStore implements Repository using SQLite. It is the default driver
// for local development and single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS daily_usage (
		session_id TEXT NOT NULL,
		date TEXT NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (session_id, date)
	);

	CREATE TABLE IF NOT EXISTS conversation_sessions (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversation_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON conversation_messages(session_id, created_at);

	CREATE TABLE IF NOT EXISTS clarity_logs (
		id TEXT PRIMARY KEY,
		input_text TEXT NOT NULL,
		output_text TEXT NOT NULL,
		emotional_insight TEXT NOT NULL,
		daily_thread TEXT NOT NULL,
		plan TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_memory_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_events_session ON session_memory_events(session_id, created_at);

	CREATE TABLE IF NOT EXISTS subscriptions (
		session_id TEXT PRIMARY KEY,
		stripe_customer_id TEXT NOT NULL DEFAULT '',
		stripe_subscription_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		plan TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_stripe ON subscriptions(stripe_subscription_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// GetDailyUsage returns the message count for (sessionID, day).
func (s *SQLiteStore) GetDailyUsage(ctx context.Context, sessionID, day string) (int, error) {
	query := `SELECT message_count FROM daily_usage WHERE session_id = ? AND date = ?`

	var count int
	err := s.db.QueryRowContext(ctx, query, sessionID, day).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get daily usage: %w", err)
	}
	return count, nil
}

// UpsertDailyUsage records count for (sessionID, day).
func (s *SQLiteStore) UpsertDailyUsage(ctx context.Context, sessionID, day string, count int) error {
	query := `
	INSERT INTO daily_usage (session_id, date, message_count)
	VALUES (?, ?, ?)
	ON CONFLICT(session_id, date) DO UPDATE SET
		message_count = excluded.message_count`

	if _, err := s.db.ExecContext(ctx, query, sessionID, day, count); err != nil {
		return fmt.Errorf("upsert daily usage: %w", err)
	}
	return nil
}

// EnsureSession registers a session id.
func (s *SQLiteStore) EnsureSession(ctx context.Context, sessionID string) error {
	query := `
	INSERT INTO conversation_sessions (id, created_at)
	VALUES (?, ?)
	ON CONFLICT(id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, sessionID, time.Now().Unix()); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

// SessionExists reports whether the session has been registered.
func (s *SQLiteStore) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	query := `SELECT 1 FROM conversation_sessions WHERE id = ?`

	var one int
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check session exists: %w", err)
	}
	return true, nil
}

// RecentMessages returns up to limit most recent turns, oldest-to-newest.
func (s *SQLiteStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `
	SELECT id, session_id, role, content, created_at
	FROM conversation_messages
	WHERE session_id = ?
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Query is newest-first so LIMIT keeps the most recent window; callers
	// want oldest-to-newest.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// AppendMessages appends turns in order for a session.
func (s *SQLiteStore) AppendMessages(ctx context.Context, msgs []domain.Message) error {
	query := `
	INSERT INTO conversation_messages (id, session_id, role, content, created_at)
	VALUES (?, ?, ?, ?, ?)`

	for _, m := range msgs {
		id := m.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := s.db.ExecContext(ctx, query, id, m.SessionID, m.Role, m.Content, createdAt.Unix()); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return nil
}

// InsertClarityLog writes one audit row.
func (s *SQLiteStore) InsertClarityLog(ctx context.Context, entry *domain.ClarityLog) error {
	query := `
	INSERT INTO clarity_logs (id, input_text, output_text, emotional_insight, daily_thread, plan, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, query,
		id, entry.InputText, entry.OutputText,
		entry.EmotionalInsight, entry.DailyThread,
		entry.Plan, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert clarity log: %w", err)
	}
	return nil
}

// AppendMemoryEvent appends to the session's emotional timeline.
func (s *SQLiteStore) AppendMemoryEvent(ctx context.Context, ev *domain.MemoryEvent) error {
	query := `
	INSERT INTO session_memory_events (id, session_id, event_type, content, created_at)
	VALUES (?, ?, ?, ?, ?)`

	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, query, id, ev.SessionID, ev.EventType, ev.Content, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert memory event: %w", err)
	}
	return nil
}

// RecentMemoryEvents returns up to limit most recent events, newest first.
func (s *SQLiteStore) RecentMemoryEvents(ctx context.Context, sessionID string, limit int) ([]domain.MemoryEvent, error) {
	query := `
	SELECT id, session_id, event_type, content, created_at
	FROM session_memory_events
	WHERE session_id = ?
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query memory events: %w", err)
	}
	defer rows.Close()

	var events []domain.MemoryEvent
	for rows.Next() {
		var ev domain.MemoryEvent
		var createdAt int64
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.EventType, &ev.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan memory event: %w", err)
		}
		ev.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory events: %w", err)
	}
	return events, nil
}

// GetActiveSubscription returns the active subscription, or nil.
func (s *SQLiteStore) GetActiveSubscription(ctx context.Context, sessionID string) (*domain.Subscription, error) {
	query := `
	SELECT session_id, stripe_customer_id, stripe_subscription_id, status, plan, updated_at
	FROM subscriptions
	WHERE session_id = ? AND status = 'active'`

	var sub domain.Subscription
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&sub.SessionID, &sub.StripeCustomerID, &sub.StripeSubscriptionID,
		&sub.Status, &sub.Plan, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	sub.UpdatedAt = time.Unix(updatedAt, 0)
	return &sub, nil
}

// UpsertSubscription creates or replaces the row keyed on session id.
func (s *SQLiteStore) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
	INSERT INTO subscriptions (session_id, stripe_customer_id, stripe_subscription_id, status, plan, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		stripe_customer_id = excluded.stripe_customer_id,
		stripe_subscription_id = excluded.stripe_subscription_id,
		status = excluded.status,
		plan = excluded.plan,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		sub.SessionID, sub.StripeCustomerID, sub.StripeSubscriptionID,
		sub.Status, sub.Plan, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// UpdateSubscriptionStatus syncs status and plan by provider subscription id.
func (s *SQLiteStore) UpdateSubscriptionStatus(ctx context.Context, stripeSubscriptionID, status string, plan domain.Plan) error {
	query := `
	UPDATE subscriptions SET status = ?, plan = ?, updated_at = ?
	WHERE stripe_subscription_id = ?`

	if _, err := s.db.ExecContext(ctx, query, status, plan, time.Now().Unix(), stripeSubscriptionID); err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
