package runtime

import (
	"conference-bot/contract"
	"conference-bot/domain"
	"conference-bot/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type live struct {
	session *Session
	cancel  context.CancelFunc
}

// Registry is the concurrency-safe bookkeeping of live sessions. It holds at
// most one session per conversation; insert-on-start, delete-on-finish and
// lookup-on-leave all happen under the same mutex.
type Registry struct {
	mu       sync.Mutex
	log      *slog.Logger
	clients  contract.ClientFactory
	creds    domain.Credentials
	journal  contract.OutcomeJournal
	grace    time.Duration
	sessions map[domain.ConversationID]*live
}

func NewRegistry(log *slog.Logger, clients contract.ClientFactory, creds domain.Credentials,
	journal contract.OutcomeJournal, grace time.Duration) *Registry {
	return &Registry{
		log:      log,
		clients:  clients,
		creds:    creds,
		journal:  journal,
		grace:    grace,
		sessions: make(map[domain.ConversationID]*live),
	}
}

// Start creates and runs a session for the conversation, blocking until its
// outcome. A second Start for the same conversation while one is live is
// rejected without touching the existing session. The entry is removed
// whether the session succeeded or failed.
func (r *Registry) Start(ctx context.Context, convID domain.ConversationID, dialout bool) (domain.Outcome, error) {
	r.mu.Lock()
	if _, ok := r.sessions[convID]; ok {
		r.mu.Unlock()
		r.log.Info("Session already live, ignoring start", "convId", convID)
		return domain.Outcome{}, errors.ErrSessionActive
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	session := NewSession(r.log, r.clients, r.creds, convID, dialout, r.grace)
	r.sessions[convID] = &live{session: session, cancel: cancel}
	r.mu.Unlock()

	outcome, err := session.Run(sessionCtx)

	r.mu.Lock()
	delete(r.sessions, convID)
	r.mu.Unlock()
	cancel()

	r.record(convID, outcome, err)

	if err != nil {
		// Absorbed here: one session's failure never crashes the process
		// or blocks other sessions.
		r.log.Error("Session failed", "convId", convID, "error", err)
		return domain.Outcome{}, err
	}
	return outcome, nil
}

// Leave requests to leave the conversation's call out-of-band, independent
// of the session's own convergence logic. Without a live session it is a
// silent no-op. It is a request, not a guarantee: the session reaches Done
// on its own once the platform reports the departure.
func (r *Registry) Leave(ctx context.Context, convID domain.ConversationID) error {
	r.mu.Lock()
	_, ok := r.sessions[convID]
	r.mu.Unlock()
	if !ok {
		// Session already finished, nothing to leave.
		return nil
	}

	r.log.Info("Requested to leave conference", "convId", convID)

	client := r.clients.NewClient(r.creds)
	if _, err := client.Logon(ctx); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrAuth, err)
	}
	conv, err := client.GetConversation(ctx, convID)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrNotFound, err)
	}
	if err := client.LeaveConference(ctx, conv.RTCSessionID); err != nil {
		return fmt.Errorf("leaving call: %w", err)
	}
	if err := client.Logout(ctx); err != nil {
		r.log.Warn("Logout after leave failed", "convId", convID, "error", err)
	}
	return nil
}

// Active returns the number of live sessions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll cancels every live session's execution context. Used only at
// process shutdown; sessions unwind through their normal failure path.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Info("Closing all live sessions", "count", len(r.sessions))
	for _, l := range r.sessions {
		l.cancel()
	}
}

func (r *Registry) record(convID domain.ConversationID, outcome domain.Outcome, err error) {
	if r.journal == nil {
		return
	}
	rec := domain.OutcomeRecord{
		ConversationID: convID,
		CallID:         outcome.CallID,
		DialoutCount:   outcome.DialoutCount,
		NoOp:           outcome.NoOp,
		FinishedAt:     time.Now().UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if jErr := r.journal.Save(rec); jErr != nil {
		r.log.Warn("Failed to journal session outcome", "convId", convID, "error", jErr)
	}
}
