package clarify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stillroom/clarity-engine/internal/domain"
	"github.com/stillroom/clarity-engine/internal/store"
)

// Memory events wrap the thread line in a fixed narrative prefix.
const threadMemoryPrefix = "A recurring undercurrent: "

// Recorder fans a completed turn out to the audit log, the emotional
// timeline, and the transcript. The three writes are independent and
// best-effort: each failure is logged and swallowed, one write failing
// never prevents another from being attempted, and nothing here can block
// or alter the response already produced for the caller.
type Recorder struct {
	repo    store.Repository
	timeout time.Duration
}

// NewRecorder creates a recorder writing through the given repository.
func NewRecorder(repo store.Repository, timeout time.Duration) *Recorder {
	return &Recorder{repo: repo, timeout: timeout}
}

// Record persists one turn. sessionID may be empty; raw is the unparsed
// model output, which is what the transcript keeps for the assistant side.
func (r *Recorder) Record(ctx context.Context, sessionID, input, raw string, reply domain.StructuredReply, plan domain.Plan) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.writeAuditLog(ctx, input, reply, plan)
	}()

	if sessionID != "" && reply.Thread != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.writeMemoryEvent(ctx, sessionID, reply.Thread)
		}()
	}

	if sessionID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.writeTranscript(ctx, sessionID, input, raw)
		}()
	}

	wg.Wait()
}

// recoverWrite guards a fan-out goroutine. These run detached from the
// request goroutine, so neither the orchestrator's recover nor the HTTP
// middleware can catch a panicking store driver here.
func recoverWrite(name string) {
	if p := recover(); p != nil {
		slog.Error("Persistence write panicked", "write", name, "panic", p)
	}
}

func (r *Recorder) writeAuditLog(ctx context.Context, input string, reply domain.StructuredReply, plan domain.Plan) {
	defer recoverWrite("audit_log")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.repo.InsertClarityLog(ctx, &domain.ClarityLog{
		InputText:        input,
		OutputText:       reply.Clarity,
		EmotionalInsight: reply.Insight,
		DailyThread:      reply.Thread,
		Plan:             plan,
	})
	if err != nil {
		slog.Error("Clarity log insert failed", "error", err)
	}
}

func (r *Recorder) writeMemoryEvent(ctx context.Context, sessionID, thread string) {
	defer recoverWrite("memory_event")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.repo.AppendMemoryEvent(ctx, &domain.MemoryEvent{
		SessionID: sessionID,
		EventType: domain.EventTypeEmotionalThread,
		Content:   threadMemoryPrefix + thread,
	})
	if err != nil {
		slog.Error("Memory event insert failed", "session_id", sessionID, "error", err)
	}
}

func (r *Recorder) writeTranscript(ctx context.Context, sessionID, input, raw string) {
	defer recoverWrite("transcript")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Turns are only kept for sessions registered in the store; unknown
	// ids are untrusted client input, not an error.
	exists, err := r.repo.SessionExists(ctx, sessionID)
	if err != nil {
		slog.Error("Session lookup failed", "session_id", sessionID, "error", err)
		return
	}
	if !exists {
		return
	}

	err = r.repo.AppendMessages(ctx, []domain.Message{
		{SessionID: sessionID, Role: domain.RoleUser, Content: input},
		{SessionID: sessionID, Role: domain.RoleAssistant, Content: raw},
	})
	if err != nil {
		slog.Error("Transcript insert failed", "session_id", sessionID, "error", err)
	}
}
