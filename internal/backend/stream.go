// Websocket event channels.
//
// One overview channel streams job-set-wide events; per-job channels stream
// fine-grained progress and playlist events. Connection supervision (backoff,
// reconnect, desired-set reconciliation) lives in the engine; this file only
// dials and pumps.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/desertthunder/jobsync/internal/shared"
)

// StreamDialer opens event channels against the backend.
type StreamDialer struct {
	baseURL string
	tokens  oauth2.TokenSource
	dialer  *websocket.Dialer
	logger  *log.Logger
}

// NewStreamDialer creates a dialer. tokens may be nil; connectTimeout bounds
// the websocket handshake.
func NewStreamDialer(baseURL string, tokens oauth2.TokenSource, connectTimeout time.Duration, logger *log.Logger) *StreamDialer {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &StreamDialer{
		baseURL: baseURL,
		tokens:  tokens,
		dialer:  &websocket.Dialer{HandshakeTimeout: connectTimeout},
		logger:  logger,
	}
}

// DialOverview opens the job-set-wide event channel.
func (d *StreamDialer) DialOverview(ctx context.Context) (*EventStream, error) {
	return d.dial(ctx, "/api/jobs/events")
}

// DialJob opens the fine-grained event channel for one job.
func (d *StreamDialer) DialJob(ctx context.Context, jobID string) (*EventStream, error) {
	return d.dial(ctx, "/api/jobs/"+url.PathEscape(jobID)+"/events")
}

func (d *StreamDialer) dial(ctx context.Context, path string) (*EventStream, error) {
	wsURL, err := websocketURL(d.baseURL, path)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if d.tokens != nil {
		tok, err := d.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: token source: %v", shared.ErrTransport, err)
		}
		header.Set("Authorization", "Bearer "+tok.AccessToken)
	}

	conn, resp, err := d.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: status %d: %v", shared.ErrTransport, path, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", shared.ErrTransport, path, err)
	}
	return &EventStream{conn: conn, logger: d.logger}, nil
}

func websocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: bad base URL: %v", shared.ErrInvalidConfig, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", shared.ErrInvalidConfig, u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}

// EventStream is one open event channel.
type EventStream struct {
	conn   *websocket.Conn
	logger *log.Logger
}

// Listen pumps decoded events into handler until the connection closes, the
// context is cancelled, or a read fails. Undecodable messages are dropped and
// logged; they never abort the pump. The returned error is nil only for a
// clean close.
func (s *EventStream) Listen(ctx context.Context, handler func(Event)) error {
	// Unblock ReadMessage on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("%w: read: %v", shared.ErrTransport, err)
		}

		ev, err := DecodeEvent(raw)
		if err != nil {
			s.logger.Warn("dropping undecodable event", "err", err)
			continue
		}
		handler(ev)
	}
}

// Close tears down the channel's transport.
func (s *EventStream) Close() error {
	return s.conn.Close()
}
