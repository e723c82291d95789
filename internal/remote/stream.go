package remote

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/liveledger/internal/fanout"
	"github.com/roach88/liveledger/internal/match"
)

// SubscribeMatch streams a match and every later version of it. A nil
// value means the match was deleted.
func (c *Client) SubscribeMatch(ctx context.Context, id string) (<-chan *match.LiveMatch, func(), error) {
	return subscribe[*match.LiveMatch](ctx, c, "/api/v1/matches/"+url.PathEscape(id)+"/stream")
}

// SubscribeEvents streams a match ledger and every event appended to it.
func (c *Client) SubscribeEvents(ctx context.Context, matchID string) (<-chan match.Event, func(), error) {
	return subscribe[match.Event](ctx, c, "/api/v1/matches/"+url.PathEscape(matchID)+"/events/stream")
}

// SubscribeActive streams the set of in-progress matches.
func (c *Client) SubscribeActive(ctx context.Context) (<-chan []match.LiveMatch, func(), error) {
	return subscribe[[]match.LiveMatch](ctx, c, "/api/v1/active/stream")
}

func (c *Client) wsURL(path string) string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String() + path
}

// subscribe dials a stream and decodes each text frame into a T. The
// channel closes when the server ends the stream, the connection drops or
// cancel is called.
func subscribe[T any](ctx context.Context, c *Client, path string) (<-chan T, func(), error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL(path), nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return nil, nil, decodeError(resp)
		}
		return nil, nil, match.NewConnectivityError(err)
	}

	out := make(chan T, fanout.DefaultBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		})
	}

	go func() {
		defer close(out)
		for {
			var v T
			if err := conn.ReadJSON(&v); err != nil {
				select {
				case <-done:
				default:
					if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
						slog.Warn("remote stream ended", "path", path, "error", err)
					}
				}
				return
			}
			select {
			case out <- v:
			case <-done:
				return
			}
		}
	}()

	return out, cancel, nil
}
