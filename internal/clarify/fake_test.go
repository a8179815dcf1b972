package clarify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stillroom/clarity-engine/internal/domain"
)

// fakeRepo is an in-memory Repository with per-collection error
// injection, shared by the pipeline tests.
type fakeRepo struct {
	mu sync.Mutex

	usage    map[string]int // key: sessionID + "|" + day
	sessions map[string]bool
	messages []domain.Message
	logs     []domain.ClarityLog
	events   []domain.MemoryEvent
	subs     map[string]*domain.Subscription

	failUsageRead    bool
	failUsageWrite   bool
	failMessages     bool
	failMessageRead  bool
	failLogs         bool
	failEvents       bool
	failEventRead    bool
	failSessionCheck bool
	failSubs         bool

	panicLogs     bool
	panicEvents   bool
	panicMessages bool
}

var errStoreDown = errors.New("store unavailable")

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		usage:    make(map[string]int),
		sessions: make(map[string]bool),
		subs:     make(map[string]*domain.Subscription),
	}
}

func usageKey(sessionID, day string) string { return sessionID + "|" + day }

func (f *fakeRepo) GetDailyUsage(ctx context.Context, sessionID, day string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsageRead {
		return 0, errStoreDown
	}
	return f.usage[usageKey(sessionID, day)], nil
}

func (f *fakeRepo) UpsertDailyUsage(ctx context.Context, sessionID, day string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsageWrite {
		return errStoreDown
	}
	f.usage[usageKey(sessionID, day)] = count
	return nil
}

func (f *fakeRepo) EnsureSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[sessionID] = true
	return nil
}

func (f *fakeRepo) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSessionCheck {
		return false, errStoreDown
	}
	return f.sessions[sessionID], nil
}

func (f *fakeRepo) RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMessageRead {
		return nil, errStoreDown
	}
	var out []domain.Message
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeRepo) AppendMessages(ctx context.Context, msgs []domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMessages {
		panic("message write driver bug")
	}
	if f.failMessages {
		return errStoreDown
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeRepo) InsertClarityLog(ctx context.Context, entry *domain.ClarityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicLogs {
		panic("log write driver bug")
	}
	if f.failLogs {
		return errStoreDown
	}
	f.logs = append(f.logs, *entry)
	return nil
}

func (f *fakeRepo) AppendMemoryEvent(ctx context.Context, ev *domain.MemoryEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicEvents {
		panic("event write driver bug")
	}
	if f.failEvents {
		return errStoreDown
	}
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeRepo) RecentMemoryEvents(ctx context.Context, sessionID string, limit int) ([]domain.MemoryEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEventRead {
		return nil, errStoreDown
	}
	var out []domain.MemoryEvent
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		if f.events[i].SessionID == sessionID {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}

func (f *fakeRepo) GetActiveSubscription(ctx context.Context, sessionID string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSubs {
		return nil, errStoreDown
	}
	sub := f.subs[sessionID]
	if sub == nil || sub.Status != "active" {
		return nil, nil
	}
	return sub, nil
}

func (f *fakeRepo) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[sub.SessionID] = sub
	return nil
}

func (f *fakeRepo) UpdateSubscriptionStatus(ctx context.Context, stripeSubscriptionID, status string, plan domain.Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if sub.StripeSubscriptionID == stripeSubscriptionID {
			sub.Status = status
			sub.Plan = plan
		}
	}
	return nil
}

func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

func (f *fakeRepo) logCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logs)
}

func (f *fakeRepo) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeRepo) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// fakeGenerator returns canned output or a canned error.
type fakeGenerator struct {
	output string
	err    error

	mu        sync.Mutex
	calls     int
	lastModel string
	lastInput string
	history   []domain.Message
}

func (g *fakeGenerator) Generate(ctx context.Context, systemPrompt string, history []domain.Message, input, model string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastModel = model
	g.lastInput = input
	g.history = history
	if g.err != nil {
		return "", g.err
	}
	return g.output, nil
}

func testOptions() Options {
	return Options{
		SystemPrompt:   "system policy",
		FreeModel:      "model-free",
		ProModel:       "model-pro",
		FreeDailyLimit: 5,
		HistoryLimit:   30,
		GenTimeout:     5 * time.Second,
		StoreTimeout:   time.Second,
	}
}
