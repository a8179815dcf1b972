package clarify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stillroom/clarity-engine/internal/domain"
	"github.com/stillroom/clarity-engine/internal/store"
)

// PlanResolver resolves the billing tier for a session from the
// subscriptions collection. Absence of an active subscription, and any
// lookup failure, resolve to the free plan. Results are cached in-process
// for a short TTL since the frontend asks on every page view.
type PlanResolver struct {
	repo     store.Repository
	timeout  time.Duration
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]planCacheEntry
}

type planCacheEntry struct {
	plan      domain.Plan
	expiresAt time.Time
}

// NewPlanResolver creates a resolver with the given store timeout and
// cache TTL.
func NewPlanResolver(repo store.Repository, timeout, cacheTTL time.Duration) *PlanResolver {
	return &PlanResolver{
		repo:     repo,
		timeout:  timeout,
		cacheTTL: cacheTTL,
		cache:    make(map[string]planCacheEntry),
	}
}

// Resolve returns the plan for a session. It never fails: every error
// path degrades to free.
func (p *PlanResolver) Resolve(ctx context.Context, sessionID string) domain.Plan {
	if sessionID == "" {
		return domain.PlanFree
	}

	if plan, ok := p.cached(sessionID); ok {
		return plan
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	sub, err := p.repo.GetActiveSubscription(ctx, sessionID)
	if err != nil {
		slog.Warn("Plan lookup failed, defaulting to free", "session_id", sessionID, "error", err)
		return domain.PlanFree
	}

	plan := domain.PlanFree
	if sub.Active() {
		plan = domain.PlanPro
	}
	p.store(sessionID, plan)
	return plan
}

func (p *PlanResolver) cached(sessionID string) (domain.Plan, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.cache[sessionID]
	if !ok || time.Now().After(entry.expiresAt) {
		return domain.PlanFree, false
	}
	return entry.plan, true
}

func (p *PlanResolver) store(sessionID string, plan domain.Plan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[sessionID] = planCacheEntry{plan: plan, expiresAt: time.Now().Add(p.cacheTTL)}
}
