package e2e

import (
	"conference-bot/contract"
	"conference-bot/domain"
	"conference-bot/domain/event"
	"context"
	"sync"

	"github.com/google/uuid"
)

// fakePlatform is an in-process stand-in for the collaboration platform.
// All clients it hands out share one conversation state, so a scenario can
// observe what any session did and feed events back to it.
type fakePlatform struct {
	mu           sync.Mutex
	conv         domain.Conversation
	participants []domain.Participant
	activeCall   *domain.Call

	startedCalls []domain.CallID
	dialed       []string
	left         []string
	logouts      int
	subscribers  []chan event.CallEvent
}

func newFakePlatform(conv domain.Conversation, participants ...domain.Participant) *fakePlatform {
	return &fakePlatform{conv: conv, participants: participants}
}

func (p *fakePlatform) NewClient(creds domain.Credentials) contract.Client {
	return &fakeClient{p: p}
}

// Push fans an event out to every subscribed session.
func (p *fakePlatform) Push(ev event.CallEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (p *fakePlatform) StartedCalls() []domain.CallID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.CallID(nil), p.startedCalls...)
}

func (p *fakePlatform) Dialed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.dialed...)
}

func (p *fakePlatform) Left() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.left...)
}

func (p *fakePlatform) Logouts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logouts
}

type fakeClient struct {
	p *fakePlatform
}

func (c *fakeClient) Logon(ctx context.Context) (domain.User, error) {
	return domain.User{UserID: "bot"}, nil
}

func (c *fakeClient) GetConversation(ctx context.Context, id domain.ConversationID) (domain.Conversation, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	return c.p.conv, nil
}

func (c *fakeClient) FindCall(ctx context.Context, rtcSessionID string) (*domain.Call, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	return c.p.activeCall, nil
}

func (c *fakeClient) GetParticipants(ctx context.Context, id domain.ConversationID) ([]domain.Participant, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	return append([]domain.Participant(nil), c.p.participants...), nil
}

func (c *fakeClient) StartConference(ctx context.Context, id domain.ConversationID) (domain.Call, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	call := domain.Call{ID: domain.CallID(uuid.New().String()), RTCSessionID: c.p.conv.RTCSessionID}
	c.p.activeCall = &call
	c.p.startedCalls = append(c.p.startedCalls, call.ID)
	return call, nil
}

func (c *fakeClient) Mute(ctx context.Context, callID domain.CallID) error {
	return nil
}

func (c *fakeClient) AddParticipant(ctx context.Context, callID domain.CallID, userID string) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	c.p.dialed = append(c.p.dialed, userID)
	return nil
}

func (c *fakeClient) LeaveConference(ctx context.Context, id string) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	c.p.left = append(c.p.left, id)
	c.p.activeCall = nil
	return nil
}

func (c *fakeClient) Logout(ctx context.Context) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	c.p.logouts++
	return nil
}

func (c *fakeClient) Subscribe(ctx context.Context, kinds ...event.Kind) (<-chan event.CallEvent, error) {
	ch := make(chan event.CallEvent, 16)
	c.p.mu.Lock()
	c.p.subscribers = append(c.p.subscribers, ch)
	c.p.mu.Unlock()
	return ch, nil
}
