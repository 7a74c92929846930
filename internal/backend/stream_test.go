package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"
)

func TestWebsocketURL(t *testing.T) {
	cases := []struct {
		base string
		path string
		want string
	}{
		{"http://localhost:9863", "/api/jobs/events", "ws://localhost:9863/api/jobs/events"},
		{"https://host.example", "/api/jobs/j1/events", "wss://host.example/api/jobs/j1/events"},
		{"ws://host:1234/", "/api/jobs/events", "ws://host:1234/api/jobs/events"},
	}
	for _, tc := range cases {
		got, err := websocketURL(tc.base, tc.path)
		if err != nil {
			t.Fatalf("websocketURL(%q): %v", tc.base, err)
		}
		if got != tc.want {
			t.Errorf("websocketURL(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}

	if _, err := websocketURL("ftp://host", "/x"); err == nil {
		t.Error("unsupported scheme should fail")
	}
}

func TestEventStreamListen(t *testing.T) {
	upgrader := websocket.Upgrader{}
	messages := []string{
		`{"event":"update","payload":{"job_id":"j1","status":"running"}}`,
		`not decodable`,
		`{"event":"progress","payload":{"job_id":"j1","percent":50}}`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range messages {
			conn.WriteMessage(websocket.TextMessage, []byte(m))
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer server.Close()

	dialer := NewStreamDialer(server.URL, nil, 5*time.Second, nil)
	stream, err := dialer.DialOverview(context.Background())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer stream.Close()

	var got []Event
	if err := stream.Listen(context.Background(), func(ev Event) {
		got = append(got, ev)
	}); err != nil {
		t.Fatalf("listen: %v", err)
	}

	// The undecodable frame is dropped, not fatal.
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2", len(got))
	}
	if _, ok := got[0].(UpdateEvent); !ok {
		t.Errorf("first event %T", got[0])
	}
	if _, ok := got[1].(ProgressEvent); !ok {
		t.Errorf("second event %T", got[1])
	}
}

func TestDialOverviewPath(t *testing.T) {
	upgrader := websocket.Upgrader{}
	type dialInfo struct{ path, auth string }
	seen := make(chan dialInfo, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- dialInfo{path: r.URL.Path, auth: r.Header.Get("Authorization")}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"})
	dialer := NewStreamDialer(server.URL, tokens, 5*time.Second, nil)
	stream, err := dialer.DialJob(context.Background(), "j 1")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	stream.Close()

	info := <-seen
	if !strings.HasPrefix(info.path, "/api/jobs/") || !strings.HasSuffix(info.path, "/events") {
		t.Errorf("path = %q", info.path)
	}
	if info.auth != "Bearer tok" {
		t.Errorf("authorization = %q", info.auth)
	}
}
