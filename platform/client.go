// Package platform is the adapter to the collaboration platform's REST and
// websocket APIs. Each Client is one authenticated instance; the session
// core only depends on the contract, never on this package directly.
package platform

import (
	"bytes"
	"conference-bot/contract"
	"conference-bot/domain"
	"conference-bot/errors"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Factory hands out isolated clients that share one HTTP transport and one
// identity. One client per session keeps event streams apart.
type Factory struct {
	log        *slog.Logger
	httpClient *http.Client
}

func NewFactory(log *slog.Logger, httpClient *http.Client) *Factory {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Factory{log: log, httpClient: httpClient}
}

func (f *Factory) NewClient(creds domain.Credentials) contract.Client {
	return &Client{
		log:       f.log,
		http:      f.httpClient,
		creds:     creds,
		baseURL:   fmt.Sprintf("https://%s/rest/v1", creds.Domain),
		wsBaseURL: fmt.Sprintf("wss://%s/rest/v1", creds.Domain),
	}
}

// Client talks to the platform on behalf of the shared identity. It is not
// safe to share across sessions; every session owns its own instance.
type Client struct {
	log       *slog.Logger
	http      *http.Client
	creds     domain.Credentials
	baseURL   string
	wsBaseURL string
	user      domain.User
}

func (c *Client) Logon(ctx context.Context) (domain.User, error) {
	var resp struct {
		UserID string `json:"userId"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &resp); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrAuth, err)
	}
	c.user = domain.User{UserID: resp.UserID}
	return c.user, nil
}

func (c *Client) GetConversation(ctx context.Context, id domain.ConversationID) (domain.Conversation, error) {
	var resp struct {
		ConvID           string `json:"convId"`
		Topic            string `json:"topic"`
		TopicPlaceholder string `json:"topicPlaceholder"`
		RTCSessionID     string `json:"rtcSessionId"`
	}
	path := "/conversations/" + url.PathEscape(string(id))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return domain.Conversation{}, err
	}
	return domain.Conversation{
		ID:               domain.ConversationID(resp.ConvID),
		Topic:            resp.Topic,
		TopicPlaceholder: resp.TopicPlaceholder,
		RTCSessionID:     resp.RTCSessionID,
	}, nil
}

// FindCall returns the call currently active for an RTC session, or nil when
// there is none.
func (c *Client) FindCall(ctx context.Context, rtcSessionID string) (*domain.Call, error) {
	var resp struct {
		CallID       string `json:"callId"`
		RTCSessionID string `json:"rtcSessionId"`
	}
	path := "/rtc/" + url.PathEscape(rtcSessionID) + "/call"
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &domain.Call{ID: domain.CallID(resp.CallID), RTCSessionID: resp.RTCSessionID}, nil
}

func (c *Client) GetParticipants(ctx context.Context, id domain.ConversationID) ([]domain.Participant, error) {
	var resp struct {
		Participants []struct {
			UserID string `json:"userId"`
		} `json:"participants"`
	}
	path := "/conversations/" + url.PathEscape(string(id)) + "/participants"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	participants := make([]domain.Participant, 0, len(resp.Participants))
	for _, p := range resp.Participants {
		participants = append(participants, domain.Participant{UserID: p.UserID})
	}
	return participants, nil
}

func (c *Client) StartConference(ctx context.Context, id domain.ConversationID) (domain.Call, error) {
	var resp struct {
		CallID       string `json:"callId"`
		RTCSessionID string `json:"rtcSessionId"`
	}
	path := "/conversations/" + url.PathEscape(string(id)) + "/conference"
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return domain.Call{}, err
	}
	return domain.Call{ID: domain.CallID(resp.CallID), RTCSessionID: resp.RTCSessionID}, nil
}

func (c *Client) Mute(ctx context.Context, callID domain.CallID) error {
	return c.do(ctx, http.MethodPost, "/calls/"+url.PathEscape(string(callID))+"/mute", nil, nil)
}

func (c *Client) AddParticipant(ctx context.Context, callID domain.CallID, userID string) error {
	body := map[string]string{"userId": userID}
	path := "/calls/" + url.PathEscape(string(callID)) + "/participants"
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDial, err)
	}
	return nil
}

// LeaveConference accepts either a call id or an RTC session id; the backend
// resolves both to the same call.
func (c *Client) LeaveConference(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/calls/"+url.PathEscape(id)+"/leave", nil, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", errors.ErrNotFound, method, path)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s %s", errors.ErrAuth, method, path)
	case resp.StatusCode >= 300:
		return fmt.Errorf("platform returned %d for %s %s", resp.StatusCode, method, path)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
