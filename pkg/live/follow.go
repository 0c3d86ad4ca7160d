package live

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// DefaultPath is where the upload server mounts the hub.
const DefaultPath = "/live"

// FeedURL derives the websocket URL of the feed from an upload server URL:
// http becomes ws, https becomes wss, and the path is replaced with
// DefaultPath.
func FeedURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("live: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("live: %q has no host", server)
	}
	u.Path = DefaultPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Follow connects to the feed at feedURL and calls fn for every notice, in
// order, until ctx ends or the server closes the feed. Both of those return
// nil. ready, if non-nil, is closed once the subscription is established.
func Follow(ctx context.Context, feedURL string, ready chan<- struct{}, fn func(Notice)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, feedURL, nil)
	if err != nil {
		return fmt.Errorf("live: dial %s: %w", feedURL, err)
	}
	if ready != nil {
		close(ready)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		var n Notice
		if err := conn.ReadJSON(&n); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("live: read: %w", err)
		}
		fn(n)
	}
}
