package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/raypak/internal/store"
)

type stateEnvelope struct {
	Type string      `json:"type"`
	Data store.State `json:"data"`
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) stateEnvelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var env stateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("failed to parse envelope: %v (%s)", err, data)
	}
	return env
}

func TestWebSocket_InitialStateAndUpdates(t *testing.T) {
	ms := newMockStore()
	ms.Publish(pollingState(1, 78.5))
	srv := newTestServer(ms, nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)

	env := readEnvelope(t, conn)
	if env.Type != "state" {
		t.Errorf("Type = %q, want state", env.Type)
	}
	if env.Data.Revision != 1 {
		t.Errorf("initial Revision = %d, want 1", env.Data.Revision)
	}

	ms.Publish(pollingState(2, 80.0))

	env = readEnvelope(t, conn)
	if env.Data.Revision != 2 {
		t.Errorf("streamed Revision = %d, want 2", env.Data.Revision)
	}
}

func TestWebSocket_ClientCloseReleasesSubscription(t *testing.T) {
	ms := newMockStore()
	srv := newTestServer(ms, nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	readEnvelope(t, conn)

	if got := ms.subscriberCount(); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for ms.subscriberCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := ms.subscriberCount(); got != 0 {
		t.Errorf("expected subscription released, %d remaining", got)
	}
}

func TestWebSocket_ServerShutdownClosesConnection(t *testing.T) {
	ms := newMockStore()
	srv := newTestServer(ms, nil)

	serverCtx, serverCancel := context.WithCancel(context.Background())
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.handleWebSocket(w, r.WithContext(serverCtx))
	})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()
	readEnvelope(t, conn)

	serverCancel()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going-away close, got %v", err)
	}
}

func TestWebSocket_PlainHTTPRejected(t *testing.T) {
	srv := newTestServer(newMockStore(), nil)

	rec := httptest.NewRecorder()
	srv.handleWebSocket(rec, httptest.NewRequest(http.MethodGet, "/api/ws", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for non-upgrade request, got %d", rec.Code)
	}
}
