package clarify

import (
	"context"
	"log/slog"
	"time"

	"github.com/stillroom/clarity-engine/internal/store"
)

// QuotaLedger gates request admission for unpaid sessions against a
// per-session, per-day message count. It is a soft UX guard, not a
// billing-critical counter: reads fail open and the increment is a plain
// read-then-upsert with no transactional isolation, so concurrent
// requests for the same session and day can overrun the limit by a
// message. That race is accepted.
type QuotaLedger struct {
	repo    store.Repository
	limit   int
	timeout time.Duration
}

// Admission is the outcome of a quota check.
type Admission struct {
	Admitted  bool
	Remaining int
}

// NewQuotaLedger creates a ledger enforcing the given daily limit.
func NewQuotaLedger(repo store.Repository, limit int, timeout time.Duration) *QuotaLedger {
	return &QuotaLedger{repo: repo, limit: limit, timeout: timeout}
}

// QuotaDay is the calendar-day bucket used to reset the free allowance.
// Days are UTC.
func QuotaDay(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// Admit checks and, when below the limit, consumes one unit of the
// session's daily allowance. A failed read counts as zero usage and a
// failed increment does not revoke admission; availability wins over
// strict enforcement.
func (l *QuotaLedger) Admit(ctx context.Context, sessionID, day string) Admission {
	readCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	count, err := l.repo.GetDailyUsage(readCtx, sessionID, day)
	if err != nil {
		slog.Warn("Quota read failed, admitting request", "session_id", sessionID, "error", err)
		count = 0
	}

	if count >= l.limit {
		return Admission{Admitted: false, Remaining: 0}
	}

	writeCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.repo.UpsertDailyUsage(writeCtx, sessionID, day, count+1); err != nil {
		slog.Error("Quota increment failed", "session_id", sessionID, "day", day, "error", err)
	}

	return Admission{Admitted: true, Remaining: l.limit - count - 1}
}
