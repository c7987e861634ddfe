//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"conference-bot/domain"
	"conference-bot/domain/event"
	"context"
	"reflect"
	"time"
)

// Client is one authenticated instance against the platform. Every session
// owns its own Client for its whole lifetime so that concurrent event
// streams and call state never cross-contaminate.
type Client interface {
	Logon(ctx context.Context) (domain.User, error)
	GetConversation(ctx context.Context, id domain.ConversationID) (domain.Conversation, error)
	// FindCall returns the active call for an RTC session, or nil when none.
	FindCall(ctx context.Context, rtcSessionID string) (*domain.Call, error)
	GetParticipants(ctx context.Context, id domain.ConversationID) ([]domain.Participant, error)
	StartConference(ctx context.Context, id domain.ConversationID) (domain.Call, error)
	Mute(ctx context.Context, callID domain.CallID) error
	AddParticipant(ctx context.Context, callID domain.CallID, userID string) error
	// LeaveConference accepts a call id or an RTC session id.
	LeaveConference(ctx context.Context, id string) error
	Logout(ctx context.Context) error
	// Subscribe arms a lazy, infinite event feed for the given kinds. It must
	// be called before the action whose events are awaited; the channel is
	// closed when ctx is canceled or the client logs out.
	Subscribe(ctx context.Context, kinds ...event.Kind) (<-chan event.CallEvent, error)
}

// ClientFactory hands out isolated Client instances sharing one identity.
type ClientFactory interface {
	NewClient(creds domain.Credentials) Client
}

type IRegistry interface {
	Start(ctx context.Context, convID domain.ConversationID, dialout bool) (domain.Outcome, error)
	Leave(ctx context.Context, convID domain.ConversationID) error
	Active() int
	CloseAll()
}

// Job is a handle to one scheduled start. Cancel reports whether the job
// was still pending.
type Job interface {
	Cancel() bool
}

type IScheduler interface {
	Schedule(at time.Time, convID domain.ConversationID) Job
	Stop()
}

type OutcomeJournal interface {
	Save(record domain.OutcomeRecord) error
	Recent(limit int) ([]domain.OutcomeRecord, error)
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
