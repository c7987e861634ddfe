package web

import (
	"conference-bot/contract"
	"conference-bot/domain"
	"conference-bot/mocks"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestServer(t *testing.T) (*Server, *mocks.MockIScheduler, *mocks.MockIRegistry, *mocks.MockOutcomeJournal) {
	t.Helper()
	ctrl := gomock.NewController(t)
	scheduler := mocks.NewMockIScheduler(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)
	journal := mocks.NewMockOutcomeJournal(ctrl)

	creds := domain.Credentials{
		System:   "sandbox",
		Domain:   "example.circuit.local",
		ClientID: "client-1",
	}
	return NewServer(slog.Default(), scheduler, registry, journal, creds), scheduler, registry, journal
}

func TestServer_ScheduleRegistersJob(t *testing.T) {
	req := require.New(t)
	server, scheduler, _, _ := newTestServer(t)

	at := time.Now().Add(time.Hour).Truncate(time.Second)
	scheduler.EXPECT().
		Schedule(gomock.Any(), domain.ConversationID("C1")).
		DoAndReturn(func(got time.Time, convID domain.ConversationID) contract.Job {
			req.True(got.Equal(at))
			return nil
		})

	body := `{"data":{"date":"` + at.Format(time.RFC3339) + `","conv":"C1"}}`
	rec := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/schedule", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")

	server.Handler().ServeHTTP(rec, request)

	req.Equal(http.StatusOK, rec.Code)
}

func TestServer_ScheduleRejectsMissingFields(t *testing.T) {
	req := require.New(t)
	server, _, _, _ := newTestServer(t)

	for name, body := range map[string]string{
		"no conversation": `{"data":{"date":"2026-09-01T10:00:00Z"}}`,
		"no date":         `{"data":{"conv":"C1"}}`,
		"empty body":      `{}`,
		"not json":        `schedule me`,
	} {
		rec := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, "/schedule", strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")

		server.Handler().ServeHTTP(rec, request)

		req.Equal(http.StatusBadRequest, rec.Code, name)
	}
}

func TestServer_ScheduleRejectsUnparseableDate(t *testing.T) {
	req := require.New(t)
	server, _, _, _ := newTestServer(t)

	body := `{"data":{"date":"next tuesday","conv":"C1"}}`
	rec := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/schedule", strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")

	server.Handler().ServeHTTP(rec, request)

	req.Equal(http.StatusBadRequest, rec.Code)
}

func TestServer_LeaveIsFireAndForget(t *testing.T) {
	req := require.New(t)
	server, _, registry, _ := newTestServer(t)

	left := make(chan domain.ConversationID, 1)
	registry.EXPECT().
		Leave(gomock.Any(), domain.ConversationID("C1")).
		DoAndReturn(func(ctx context.Context, convID domain.ConversationID) error {
			left <- convID
			return nil
		})

	rec := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/leave", strings.NewReader(`{"data":{"conv":"C1"}}`))
	request.Header.Set("Content-Type", "application/json")

	server.Handler().ServeHTTP(rec, request)

	// The response does not wait for the leave to be carried out.
	req.Equal(http.StatusOK, rec.Code)

	select {
	case convID := <-left:
		req.Equal(domain.ConversationID("C1"), convID)
	case <-time.After(2 * time.Second):
		req.Fail("Leave was never forwarded to the registry")
	}
}

func TestServer_SystemReportsIdentityAndHistory(t *testing.T) {
	req := require.New(t)
	server, _, registry, journal := newTestServer(t)

	registry.EXPECT().Active().Return(2)
	journal.EXPECT().Recent(recentLimit).Return([]domain.OutcomeRecord{
		{ConversationID: "C1", CallID: "call-1", DialoutCount: 2},
	}, nil)

	rec := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/system", nil)

	server.Handler().ServeHTTP(rec, request)

	req.Equal(http.StatusOK, rec.Code)

	var resp struct {
		System         string                 `json:"system"`
		Domain         string                 `json:"domain"`
		ClientID       string                 `json:"clientId"`
		LiveSessions   int                    `json:"liveSessions"`
		RecentOutcomes []domain.OutcomeRecord `json:"recentOutcomes"`
	}
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Equal("sandbox", resp.System)
	req.Equal("example.circuit.local", resp.Domain)
	req.Equal("client-1", resp.ClientID)
	req.Equal(2, resp.LiveSessions)
	req.Len(resp.RecentOutcomes, 1)
}
