// Package runtime hosts the session lifecycle core: the per-conversation
// state machine, the registry of live sessions and the one-shot scheduler.
// It orchestrates the platform client without containing transport logic.
package runtime

import (
	"conference-bot/contract"
	"conference-bot/domain"
	"conference-bot/domain/event"
	"conference-bot/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

// Session states. The Waiting -> Resolving transition is guarded by a
// compare-and-swap so that resolution happens exactly once no matter how
// many qualifying events arrive.
const (
	stateWaiting int32 = iota
	stateResolving
	stateDone
)

type trigger int

const (
	triggerNone trigger = iota
	triggerTwoJoined
	triggerDropped
	triggerEnded
)

// Session drives exactly one conference from creation to a terminal outcome.
// It owns its own platform client for its whole lifetime; nothing is shared
// with other sessions except the read-only credentials.
type Session struct {
	log     *slog.Logger
	clients contract.ClientFactory
	creds   domain.Credentials
	convID  domain.ConversationID
	dialout bool
	grace   time.Duration
	state   atomic.Int32
}

func NewSession(log *slog.Logger, clients contract.ClientFactory, creds domain.Credentials,
	convID domain.ConversationID, dialout bool, grace time.Duration) *Session {
	return &Session{
		log:     log,
		clients: clients,
		creds:   creds,
		convID:  convID,
		dialout: dialout,
		grace:   grace,
	}
}

// Run executes the session protocol:
// logon, resolve the conversation, bail out if a call is already running,
// compute the dial-out candidates, arm the event waiter, start the
// conference, mute the bot, optionally dial out and await convergence.
// Operational errors are returned as the session's failure outcome; they
// never propagate beyond the registry.
func (s *Session) Run(ctx context.Context) (domain.Outcome, error) {
	client := s.clients.NewClient(s.creds)

	user, err := client.Logon(ctx)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("%w: %v", errors.ErrAuth, err)
	}

	conv, err := client.GetConversation(ctx, s.convID)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("%w: %v", errors.ErrNotFound, err)
	}

	existing, err := client.FindCall(ctx, conv.RTCSessionID)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("looking up active call: %w", err)
	}
	if existing != nil {
		s.log.Info("Call already running, nothing to start", "convId", s.convID, "callId", existing.ID)
		if err := client.Logout(ctx); err != nil {
			s.log.Warn("Logout after no-op failed", "convId", s.convID, "error", err)
		}
		return domain.Outcome{CallID: existing.ID, NoOp: true}, nil
	}

	// Candidate set is fixed before the conference starts; membership is
	// never re-queried mid-call.
	members, err := client.GetParticipants(ctx, s.convID)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("listing participants: %w", err)
	}
	candidates := lo.FilterMap(members, func(p domain.Participant, _ int) (string, bool) {
		return p.UserID, p.UserID != user.UserID
	})

	// Subscribe before starting the conference. A participant joining
	// between the start and a later subscription would otherwise be lost.
	events, err := client.Subscribe(ctx, event.KindCallStatus, event.KindCallEnded)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("subscribing to call events: %w", err)
	}

	call, err := client.StartConference(ctx, s.convID)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("starting conference: %w", err)
	}
	s.log.Info("Started conference", "topic", conv.Title(), "callId", call.ID)

	// The bot must never contribute live media.
	if err := client.Mute(ctx, call.ID); err != nil {
		return domain.Outcome{}, fmt.Errorf("muting self: %w", err)
	}

	if !s.dialout {
		return domain.Outcome{CallID: call.ID}, nil
	}

	// The backend needs a moment before dial-out requests are accepted.
	select {
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	case <-time.After(s.grace):
	}

	dialed := s.dialAll(ctx, client, call.ID, candidates)

	if err := s.awaitConvergence(ctx, client, call.ID, events); err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{CallID: call.ID, DialoutCount: dialed}, nil
}

// dialAll invites every candidate concurrently. The requests are independent:
// a failing dial-out is logged and does not cancel the others.
func (s *Session) dialAll(ctx context.Context, client contract.Client,
	callID domain.CallID, userIDs []string) int {
	var wg sync.WaitGroup
	var dialed atomic.Int32

	for _, userID := range userIDs {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if err := client.AddParticipant(ctx, callID, userID); err != nil {
				s.log.Warn("Dial-out failed",
					"convId", s.convID, "userId", userID,
					"error", fmt.Errorf("%w: %v", errors.ErrDial, err))
				return
			}
			dialed.Add(1)
		}(userID)
	}

	wg.Wait()
	return int(dialed.Load())
}

// awaitConvergence blocks until the first qualifying event for the tracked
// call: two established participants, the bot dropped remotely, or the call
// ended. Events for other calls never trigger a transition. There is no
// timeout here; an abandoned session waits until an external leave or
// shutdown cancels it.
func (s *Session) awaitConvergence(ctx context.Context, client contract.Client,
	callID domain.CallID, events <-chan event.CallEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("event feed closed before convergence")
			}
			if ev.CallID != callID {
				// Foreign call, not ours to react to.
				continue
			}
			tr := classify(ev)
			if tr == triggerNone {
				continue
			}
			if !s.state.CompareAndSwap(stateWaiting, stateResolving) {
				s.log.Debug("Already resolving, skipping event", "callId", callID)
				continue
			}
			s.teardown(ctx, client, callID, tr)
			s.state.Store(stateDone)
			return nil
		}
	}
}

// classify maps an event to the convergence trigger it represents, if any.
func classify(ev event.CallEvent) trigger {
	switch ev.Kind {
	case event.KindCallEnded:
		return triggerEnded
	case event.KindCallStatus:
		if ev.EstablishedCount() >= 2 {
			return triggerTwoJoined
		}
		if ev.Reason == event.ReasonDroppedRemotely {
			return triggerDropped
		}
	}
	return triggerNone
}

// teardown releases the call. Only the success path leaves the conference
// explicitly; a dropped bot or an ended call just logs out. Teardown
// failures are logged but never overwrite the outcome computed before.
func (s *Session) teardown(ctx context.Context, client contract.Client,
	callID domain.CallID, tr trigger) {
	switch tr {
	case triggerTwoJoined:
		s.log.Info("Two participants established, leaving conference and logging out", "callId", callID)
		if err := client.LeaveConference(ctx, string(callID)); err != nil {
			s.log.Error("Leave after convergence failed", "callId", callID, "error", err)
		}
	case triggerDropped:
		s.log.Info("Bot was dropped remotely, logging out", "callId", callID)
	case triggerEnded:
		s.log.Info("Call ended, logging out", "callId", callID)
	}

	if err := client.Logout(ctx); err != nil {
		s.log.Error("Logout after convergence failed", "callId", callID, "error", err)
	}
}
