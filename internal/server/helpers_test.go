package server

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"outsider/internal/config"
	"outsider/internal/game"
	"outsider/internal/logging"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func init() {
	logging.SetupWriter(&bytes.Buffer{}, "error", false)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.GinMode = "test"
	cfg.TimerTickMillis = 20
	cfg.IntentRatePerSecond = 1000
	cfg.IntentBurst = 1000
	return cfg
}

func newGateway(t *testing.T, cfg config.Config) (*Server, *game.Directory) {
	t.Helper()
	dir := game.NewDirectory(game.DirectoryConfig{
		MinPlayers: cfg.MinPlayers,
		Rand:       rand.New(rand.NewPCG(11, 12)),
	})
	return New(dir, nil, cfg, nil), dir
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func createRoom(t *testing.T, ts *httptest.Server, payload any) string {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/create-room", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	return body["roomCode"].(string)
}

type wsMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendIntent(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": msgType, "data": data}))
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) wsMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
}

// typesUntil reads messages until msgType arrives and returns every type seen,
// msgType included.
func typesUntil(t *testing.T, conn *websocket.Conn, msgType string) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var seen []string
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		seen = append(seen, msg.Type)
		if msg.Type == msgType {
			return seen
		}
	}
}

func expectNoMessage(t *testing.T, conn *websocket.Conn, msgType string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == msgType {
			t.Fatalf("unexpected %s message: %v", msgType, msg.Data)
		}
	}
}

type testPlayer struct {
	name string
	id   string
	conn *websocket.Conn
}

func joinRoom(t *testing.T, ts *httptest.Server, code, name string) *testPlayer {
	t.Helper()
	conn := dialWS(t, ts)
	sendIntent(t, conn, intentJoinRoom, map[string]string{"roomCode": code, "playerName": name})
	msg := readUntil(t, conn, eventJoinedRoom)
	require.Equal(t, true, msg.Data["success"])
	readUntil(t, conn, eventPlayerJoined)
	return &testPlayer{name: name, id: msg.Data["playerId"].(string), conn: conn}
}

func snapshotOf(t *testing.T, msg wsMessage) map[string]any {
	t.Helper()
	snap, ok := msg.Data["snapshot"].(map[string]any)
	require.True(t, ok, "message %s has no snapshot", msg.Type)
	return snap
}
