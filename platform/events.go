package platform

import (
	"conference-bot/domain/event"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Subscribe arms the client's event feed for the given kinds. The feed is
// lazy and infinite: events flow on the returned channel until ctx is
// canceled or the platform closes the socket, at which point the channel is
// closed. The socket is dialed here, before the caller issues the action it
// wants to observe, so no event can be missed.
func (c *Client) Subscribe(ctx context.Context, kinds ...event.Kind) (<-chan event.CallEvent, error) {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}

	wsURL := fmt.Sprintf("%s/events?types=%s",
		c.wsBaseURL, url.QueryEscape(strings.Join(names, ",")))

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.creds.AccessToken)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dialing event feed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	events := make(chan event.CallEvent)

	// Closing the socket on ctx cancellation unblocks the reader below.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go func() {
		defer close(events)
		defer func() { _ = conn.Close() }()

		for {
			var ev event.CallEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					c.log.Warn("Event feed closed", "error", err)
				}
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
