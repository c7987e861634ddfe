package runtime

import (
	"conference-bot/contract"
	"conference-bot/domain"
	"conference-bot/errors"
	"conference-bot/mocks"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestRegistry(factory *mocks.MockClientFactory, journal contract.OutcomeJournal) *Registry {
	return NewRegistry(slog.Default(), factory, domain.Credentials{}, journal, testGrace)
}

func TestRegistry_SecondStartForSameConversationIsRejected(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	factory := mocks.NewMockClientFactory(ctrl)
	client := mocks.NewMockClient(ctrl)

	release := make(chan struct{})
	// Exactly one session may reach the platform.
	factory.EXPECT().NewClient(gomock.Any()).Return(client).Times(1)
	client.EXPECT().Logon(gomock.Any()).DoAndReturn(func(ctx context.Context) (domain.User, error) {
		<-release
		return domain.User{}, errors.ErrAuth
	})

	registry := newTestRegistry(factory, nil)
	convID := domain.ConversationID("C1")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = registry.Start(context.Background(), convID, true)
	}()

	// Given the first session is live
	req.Eventually(func() bool { return registry.Active() == 1 },
		time.Second, 5*time.Millisecond)

	// When a second start arrives for the same conversation
	_, err := registry.Start(context.Background(), convID, true)

	// Then it is rejected without clobbering the live session
	req.ErrorIs(err, errors.ErrSessionActive)
	req.Equal(1, registry.Active())

	close(release)
	wg.Wait()

	// And the entry is removed once the session finished, even on failure
	req.Zero(registry.Active())
}

func TestRegistry_ConcurrentStartsProduceExactlyOneSession(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	factory := mocks.NewMockClientFactory(ctrl)
	client := mocks.NewMockClient(ctrl)

	release := make(chan struct{})
	factory.EXPECT().NewClient(gomock.Any()).Return(client).Times(1)
	client.EXPECT().Logon(gomock.Any()).DoAndReturn(func(ctx context.Context) (domain.User, error) {
		<-release
		return domain.User{}, errors.ErrAuth
	})

	registry := newTestRegistry(factory, nil)
	convID := domain.ConversationID("C1")

	const starters = 8
	results := make(chan error, starters)
	var wg sync.WaitGroup
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := registry.Start(context.Background(), convID, true)
			results <- err
		}()
	}

	req.Eventually(func() bool { return registry.Active() == 1 },
		time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	rejected := 0
	for err := range results {
		if err == errors.ErrSessionActive {
			rejected++
		}
	}
	// All but the winner were turned away.
	req.Equal(starters-1, rejected)
	req.Zero(registry.Active())
}

func TestRegistry_LeaveWithoutLiveSessionIsANoOp(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No client is ever created: the factory mock has no expectations.
	factory := mocks.NewMockClientFactory(ctrl)
	registry := newTestRegistry(factory, nil)

	err := registry.Leave(context.Background(), "C-finished")

	req.NoError(err)
}

func TestRegistry_LeaveLiveSessionRequestsOutOfBandLeave(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	factory := mocks.NewMockClientFactory(ctrl)
	sessionClient := mocks.NewMockClient(ctrl)
	leaveClient := mocks.NewMockClient(ctrl)

	convID := domain.ConversationID("C1")
	release := make(chan struct{})

	gomock.InOrder(
		factory.EXPECT().NewClient(gomock.Any()).Return(sessionClient),
		factory.EXPECT().NewClient(gomock.Any()).Return(leaveClient),
	)
	sessionClient.EXPECT().Logon(gomock.Any()).DoAndReturn(func(ctx context.Context) (domain.User, error) {
		<-release
		return domain.User{}, errors.ErrAuth
	})

	// The out-of-band leave resolves the conversation to its RTC session id
	// and leaves by that id, on a client of its own.
	leaveClient.EXPECT().Logon(gomock.Any()).Return(domain.User{UserID: "bot"}, nil)
	leaveClient.EXPECT().GetConversation(gomock.Any(), convID).
		Return(domain.Conversation{ID: convID, RTCSessionID: "rtc-1"}, nil)
	leaveClient.EXPECT().LeaveConference(gomock.Any(), "rtc-1").Return(nil)
	leaveClient.EXPECT().Logout(gomock.Any()).Return(nil)

	registry := newTestRegistry(factory, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = registry.Start(context.Background(), convID, true)
	}()
	req.Eventually(func() bool { return registry.Active() == 1 },
		time.Second, 5*time.Millisecond)

	err := registry.Leave(context.Background(), convID)
	req.NoError(err)

	// Leave did not tear the session down by itself.
	req.Equal(1, registry.Active())

	close(release)
	wg.Wait()
}

func TestRegistry_CloseAllCancelsLiveSessions(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	factory := mocks.NewMockClientFactory(ctrl)
	client := mocks.NewMockClient(ctrl)

	factory.EXPECT().NewClient(gomock.Any()).Return(client)
	client.EXPECT().Logon(gomock.Any()).DoAndReturn(func(ctx context.Context) (domain.User, error) {
		<-ctx.Done()
		return domain.User{}, ctx.Err()
	})

	registry := newTestRegistry(factory, nil)

	done := make(chan error, 1)
	go func() {
		_, err := registry.Start(context.Background(), "C1", true)
		done <- err
	}()
	req.Eventually(func() bool { return registry.Active() == 1 },
		time.Second, 5*time.Millisecond)

	registry.CloseAll()

	select {
	case err := <-done:
		req.Error(err)
	case <-time.After(2 * time.Second):
		req.Fail("CloseAll must unblock live sessions")
	}
	req.Zero(registry.Active())
}

func TestRegistry_OutcomeIsJournaled(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	factory := mocks.NewMockClientFactory(ctrl)
	client := mocks.NewMockClient(ctrl)
	journal := mocks.NewMockOutcomeJournal(ctrl)

	convID := domain.ConversationID("C1")
	existing := &domain.Call{ID: "call-1", RTCSessionID: "rtc-1"}

	factory.EXPECT().NewClient(gomock.Any()).Return(client)
	client.EXPECT().Logon(gomock.Any()).Return(domain.User{UserID: "bot"}, nil)
	client.EXPECT().GetConversation(gomock.Any(), convID).
		Return(domain.Conversation{ID: convID, RTCSessionID: "rtc-1"}, nil)
	client.EXPECT().FindCall(gomock.Any(), "rtc-1").Return(existing, nil)
	client.EXPECT().Logout(gomock.Any()).Return(nil)

	var saved domain.OutcomeRecord
	journal.EXPECT().Save(gomock.Any()).DoAndReturn(func(rec domain.OutcomeRecord) error {
		saved = rec
		return nil
	})

	registry := newTestRegistry(factory, journal)
	outcome, err := registry.Start(context.Background(), convID, true)

	req.NoError(err)
	req.True(outcome.NoOp)
	req.Equal(convID, saved.ConversationID)
	req.True(saved.NoOp)
	req.Empty(saved.Error)
	req.False(saved.FinishedAt.IsZero())
}
