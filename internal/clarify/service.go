package clarify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/stillroom/clarity-engine/internal/domain"
	"github.com/stillroom/clarity-engine/internal/store"
)

// ErrEmptyInput is returned when the submitted text is empty or
// whitespace-only. It is the only client error the pipeline produces.
var ErrEmptyInput = errors.New("no input provided")

// Fixed terminal replies. The limit reply ends a denied request with a
// normal outcome; the fallback reply stands in whenever generation fails
// so the caller never sees a raw error or an incomplete response.
var (
	limitReachedReply = domain.StructuredReply{
		Insight:  "A natural pause has arrived, not because anything is wrong, but because space also needs edges.",
		Thread:   "A gentle boundary around how much can be held today.",
		Clarity:  "This space is still here. You’ve reached today’s free limit, but you’re welcome to return tomorrow — or keep the space open to continue without limits.",
		Question: "Would you like to keep this space open so you don’t have to stop when something important is surfacing?",
	}

	fallbackReply = domain.StructuredReply{
		Insight:  "There is a quiet emotional tension in what you’re carrying, even if the words didn’t fully land here.",
		Thread:   "A softness trying to surface beneath the noise.",
		Clarity:  "Something briefly interrupted the flow on my side, but what you shared still matters. If you have the energy, you can try sending it again, and I’ll meet you there.",
		Question: "As you sit with yourself right now, what feels heaviest that you’d want to put into words?",
	}
)

// Options configures a Service.
type Options struct {
	SystemPrompt   string
	FreeModel      string
	ProModel       string
	FreeDailyLimit int
	HistoryLimit   int
	GenTimeout     time.Duration
	StoreTimeout   time.Duration
}

// Service orchestrates one reflection request end to end. It holds no
// per-request state; everything durable lives behind the repository.
type Service struct {
	repo     store.Repository
	gen      Generator
	quota    *QuotaLedger
	recorder *Recorder
	plans    *PlanResolver
	opts     Options
	now      func() time.Time
}

// NewService wires the pipeline components around a repository and a
// generation backend.
func NewService(repo store.Repository, gen Generator, opts Options) *Service {
	return &Service{
		repo:     repo,
		gen:      gen,
		quota:    NewQuotaLedger(repo, opts.FreeDailyLimit, opts.StoreTimeout),
		recorder: NewRecorder(repo, opts.StoreTimeout),
		plans:    NewPlanResolver(repo, opts.StoreTimeout, 30*time.Second),
		opts:     opts,
		now:      time.Now,
	}
}

// Request is one incoming reflection submission.
type Request struct {
	Text      string
	SessionID string
	Plan      domain.Plan
}

// Result is the orchestrator's outcome. Reply is always fully populated.
type Result struct {
	Reply             domain.StructuredReply
	Model             string
	Plan              domain.Plan
	LimitReached      bool
	RemainingMessages int
	Degraded          bool
}

// Clarify runs the pipeline for one request: admission, context, a single
// generation call, parsing, and best-effort persistence. Apart from empty
// input it does not fail: internal errors collapse into the fixed
// fallback reply with Degraded set.
func (s *Service) Clarify(ctx context.Context, req Request) (res Result, err error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Result{}, ErrEmptyInput
	}

	sessionID := req.SessionID
	if sessionID != "" && !domain.ValidSessionID(sessionID) {
		// Malformed ids are dropped rather than rejected; the request just
		// runs without session continuity, like a first-time visitor.
		slog.Warn("Dropping malformed session id")
		sessionID = ""
	}

	// Auxiliary bookkeeping must never take the user-facing reply down
	// with it.
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Clarify pipeline panic", "panic", p)
			res = Result{Reply: fallbackReply, Plan: req.Plan, Degraded: true}
			err = nil
		}
	}()

	if req.Plan != domain.PlanPro && sessionID != "" {
		adm := s.quota.Admit(ctx, sessionID, QuotaDay(s.now()))
		if !adm.Admitted {
			return Result{
				Reply:             limitReachedReply,
				Plan:              req.Plan,
				LimitReached:      true,
				RemainingMessages: 0,
			}, nil
		}
	}

	history := s.loadHistory(ctx, sessionID)

	model := s.opts.FreeModel
	if req.Plan == domain.PlanPro {
		model = s.opts.ProModel
	}

	genCtx, cancel := context.WithTimeout(ctx, s.opts.GenTimeout)
	defer cancel()

	raw, genErr := s.gen.Generate(genCtx, s.opts.SystemPrompt, history, text, model)
	if genErr != nil {
		slog.Error("Generation failed", "model", model, "error", genErr)
		return Result{Reply: fallbackReply, Plan: req.Plan, Degraded: true}, nil
	}

	reply := Parse(raw)

	s.recorder.Record(ctx, sessionID, text, raw, reply, req.Plan)

	slog.Info("Reflection produced", "model", model, "plan", req.Plan, "session_present", sessionID != "")

	return Result{Reply: reply, Model: model, Plan: req.Plan}, nil
}

// loadHistory returns the bounded context window for a session,
// oldest-to-newest. Unknown sessions and read failures both yield an
// empty window.
func (s *Service) loadHistory(ctx context.Context, sessionID string) []domain.Message {
	if sessionID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	history, err := s.repo.RecentMessages(ctx, sessionID, s.opts.HistoryLimit)
	if err != nil {
		slog.Warn("History load failed, continuing without context", "session_id", sessionID, "error", err)
		return nil
	}
	return history
}

// The timeline read returns at most this many events, newest first.
const sessionMemoryLimit = 10

// SessionMemory returns the session's recent emotional timeline, newest
// first. Like the plan lookup it never fails: malformed ids and read
// errors both yield an empty timeline.
func (s *Service) SessionMemory(ctx context.Context, sessionID string) []domain.MemoryEvent {
	if sessionID == "" || !domain.ValidSessionID(sessionID) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	events, err := s.repo.RecentMemoryEvents(ctx, sessionID, sessionMemoryLimit)
	if err != nil {
		slog.Warn("Memory read failed, returning empty timeline", "session_id", sessionID, "error", err)
		return nil
	}
	return events
}

// ResolvePlan returns the billing tier for a session.
func (s *Service) ResolvePlan(ctx context.Context, sessionID string) domain.Plan {
	if sessionID != "" && !domain.ValidSessionID(sessionID) {
		return domain.PlanFree
	}
	return s.plans.Resolve(ctx, sessionID)
}

// RegisterSession records a client-generated session id so its turns and
// timeline can be persisted.
func (s *Service) RegisterSession(ctx context.Context, sessionID string) error {
	if !domain.ValidSessionID(sessionID) {
		return errors.New("invalid session id")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	return s.repo.EnsureSession(ctx, sessionID)
}
