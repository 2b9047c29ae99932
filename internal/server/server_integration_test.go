package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/curlcount/internal/app"
	"github.com/ayusman/curlcount/internal/detector"
	"github.com/ayusman/curlcount/internal/store"
)

func dialEvents(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() {
		conn.Close()
	})
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) app.Event {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev app.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func sendFrame(t *testing.T, conn *websocket.Conn, f *detector.LandmarkFrame) {
	t.Helper()

	msg := map[string]any{"type": MessageLandmarks, "landmarks": nil}
	if f != nil {
		msg["landmarks"] = f.Joints[:]
		msg["timestamp"] = time.Now().UnixMilli()
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write landmarks: %v", err)
	}
}

func TestAPI_RemoteSessionWorkflow(t *testing.T) {
	// Setup
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	a := app.New(app.Config{Source: app.SourceRemote, Store: s})
	defer a.Close()

	srv := New(Config{App: a})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()
	conn := dialEvents(t, ts)

	// 1. Greeting carries the idle state
	ev := readEvent(t, conn)
	if ev.Type != app.EventState || ev.Snapshot == nil || ev.Snapshot.Running {
		t.Fatalf("greeting = %+v, want idle state event", ev)
	}

	// 2. Start a session
	resp, err := client.Post(ts.URL+"/api/session/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/session/start error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	ev = readEvent(t, conn)
	if ev.Type != app.EventState || !ev.Snapshot.Running {
		t.Fatalf("start event = %+v, want running state", ev)
	}
	sessionID := ev.SessionID

	// 3. Stream two curls of the left arm, with a dropout and junk in between
	sendFrame(t, conn, detector.ArmFrame(150, 90))
	sendFrame(t, conn, nil)
	conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	sendFrame(t, conn, detector.ArmFrame(30, 90))
	sendFrame(t, conn, detector.ArmFrame(150, 90))
	sendFrame(t, conn, detector.ArmFrame(30, 90))

	for want := 1; want <= 2; want++ {
		ev = readEvent(t, conn)
		if ev.Type != app.EventCount || ev.Limb != app.LimbLeft || ev.Count != want {
			t.Fatalf("event = %+v, want left count %d", ev, want)
		}
		if ev.SessionID != sessionID {
			t.Errorf("session id = %s, want %s", ev.SessionID, sessionID)
		}
	}

	// 4. Snapshot over HTTP agrees
	resp, err = client.Get(ts.URL + "/api/session")
	if err != nil {
		t.Fatalf("GET /api/session error = %v", err)
	}
	var snap app.Snapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	resp.Body.Close()

	if snap.Left.Count != 2 || snap.Right.Count != 0 {
		t.Errorf("snapshot counts = %d/%d, want 2/0", snap.Left.Count, snap.Right.Count)
	}

	// 5. Stop freezes the counts
	resp, _ = client.Post(ts.URL+"/api/session/stop", "application/json", nil)
	resp.Body.Close()

	ev = readEvent(t, conn)
	if ev.Type != app.EventState || ev.Snapshot.Running || ev.Snapshot.Left.Count != 2 {
		t.Fatalf("stop event = %+v, want stopped with left count 2", ev)
	}
}

func TestAPI_SettingsRoundTrip(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	a := app.New(app.Config{Source: app.SourceRemote, Store: s})
	srv := New(Config{App: a})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	body := `{"low_threshold": 45, "high_threshold": 135, "min_visibility": 0.5}`
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/settings", bytes.NewBufferString(body))
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("PUT /api/settings error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	srv.Close()
	a.Close()

	// A new app over the same store picks the settings up.
	b := app.New(app.Config{Source: app.SourceRemote, Store: s})
	defer b.Close()

	got := b.Settings()
	if got.Thresholds.Low != 45 || got.Thresholds.High != 135 || got.MinVisibility != 0.5 {
		t.Errorf("reloaded settings = %+v", got)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}

func TestAPI_HealthCountsEventClients(t *testing.T) {
	a := app.New(app.Config{Source: app.SourceRemote})
	defer a.Close()

	srv := New(Config{App: a})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dialEvents(t, ts)
	// The greeting is queued after the client is registered.
	readEvent(t, conn)

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	var health struct {
		Clients int `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if health.Clients != 1 {
		t.Errorf("clients = %d, want 1", health.Clients)
	}
}
