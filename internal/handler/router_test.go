package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicerelay/internal/app/user"
	"voicerelay/internal/app/voice"
	"voicerelay/internal/configs"
	"voicerelay/internal/pkg/errs"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type wireFrame struct {
	Type    voice.MessageType `json:"type"`
	Payload json.RawMessage   `json:"payload"`
}

func newTestServer(t *testing.T, mutate func(cfg *configs.AppConfig)) (*httptest.Server, *voice.Manager) {
	t.Helper()

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<h1>voice</h1>"), 0o644))

	cfg := &configs.AppConfig{
		Environment:         configs.EnvDevelopment,
		StaticDir:           staticDir,
		JoinRate:            100,
		JoinBurst:           100,
		APIRate:             100,
		APIBurst:            100,
		SendQueueSize:       64,
		MaxMessageSize:      64 * 1024,
		MessageRate:         100,
		MessageBurst:        100,
		DiagnosticsInterval: time.Minute,
		ICEServers:          []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	}
	if mutate != nil {
		mutate(cfg)
	}

	manager := voice.NewManager(cfg)
	deps := NewAppDeps(manager, cfg)
	server := httptest.NewServer(Router(deps))

	t.Cleanup(func() {
		server.Close()
		manager.Shutdown()
		deps.Close()
	})

	return server, manager
}

func getJSON(t *testing.T, url string) envelope {
	t.Helper()

	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var body envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, msgType voice.MessageType, payload any) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}))
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var f wireFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func readRoster(t *testing.T, conn *websocket.Conn) []user.User {
	t.Helper()

	f := readFrame(t, conn)
	require.Equal(t, voice.TypeUsersList, f.Type)

	var users []user.User
	require.NoError(t, json.Unmarshal(f.Payload, &users))
	return users
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t, nil)

	body := getJSON(t, server.URL+"/health")

	assert.Equal(t, 0, body.Code)
	assert.JSONEq(t, `{"status":"ok","service":"Voice Relay"}`, string(body.Data))
}

func TestICEServers(t *testing.T) {
	server, _ := newTestServer(t, nil)

	body := getJSON(t, server.URL+"/api/ice-servers")

	var data struct {
		ICEServers []struct {
			URLs []string `json:"urls"`
		} `json:"iceServers"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	require.Len(t, data.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, data.ICEServers[0].URLs)
}

func TestStaticEntryPage(t *testing.T) {
	server, _ := newTestServer(t, nil)

	res, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()

	page, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(page), "<h1>voice</h1>")
}

func TestWebSocketSignalingEndToEnd(t *testing.T) {
	server, manager := newTestServer(t, nil)

	alice := dial(t, server)
	writeFrame(t, alice, voice.TypeJoinVoice, map[string]string{"userId": "alice", "username": "Alice", "avatar": "4"})
	assert.Equal(t, []user.User{{ID: "alice", Username: "Alice", Avatar: "4"}}, readRoster(t, alice))

	bob := dial(t, server)
	writeFrame(t, bob, voice.TypeJoinVoice, map[string]string{"userId": "bob"})

	joined := readFrame(t, alice)
	require.Equal(t, voice.TypeUserJoined, joined.Type)
	assert.JSONEq(t, `{"userId":"bob","username":"bob","avatar":"1"}`, string(joined.Payload))
	assert.Len(t, readRoster(t, alice), 2)
	assert.Len(t, readRoster(t, bob), 2)

	writeFrame(t, bob, voice.TypeOffer, map[string]any{
		"to":      "alice",
		"payload": map[string]string{"type": "offer", "sdp": "v=0"},
	})
	offer := readFrame(t, alice)
	require.Equal(t, voice.TypeOffer, offer.Type)
	assert.JSONEq(t, `{"from":"bob","payload":{"type":"offer","sdp":"v=0"}}`, string(offer.Payload))

	writeFrame(t, alice, voice.TypeAnswer, map[string]any{"to": "nobody", "payload": map[string]string{"sdp": "x"}})
	failed := readFrame(t, alice)
	require.Equal(t, voice.TypeError, failed.Type)
	assert.Contains(t, string(failed.Payload), `"to":"nobody"`)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json")))
	malformed := readFrame(t, alice)
	require.Equal(t, voice.TypeError, malformed.Type)
	var errPayload voice.ErrorPayload
	require.NoError(t, json.Unmarshal(malformed.Payload, &errPayload))
	assert.Equal(t, errs.ErrInvalidJSONFormat, errPayload.Code)

	require.NoError(t, bob.Close())

	left := readFrame(t, alice)
	require.Equal(t, voice.TypeUserLeft, left.Type)
	assert.JSONEq(t, `{"userId":"bob"}`, string(left.Payload))
	assert.Equal(t, []user.User{{ID: "alice", Username: "Alice", Avatar: "4"}}, readRoster(t, alice))

	stats := manager.Stats()
	assert.Equal(t, 1, stats.Connections)
	assert.Equal(t, 1, stats.Participants)

	body := getJSON(t, server.URL+"/api/stats")
	var apiStats voice.Stats
	require.NoError(t, json.Unmarshal(body.Data, &apiStats))
	assert.Equal(t, 1, apiStats.Participants)
}

func TestWebSocketUpgradeRateLimited(t *testing.T) {
	server, _ := newTestServer(t, func(cfg *configs.AppConfig) {
		cfg.JoinRate = 0.001
		cfg.JoinBurst = 1
	})

	dial(t, server)

	_, res, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, res)
	defer res.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}

func TestAPIRateLimited(t *testing.T) {
	server, _ := newTestServer(t, func(cfg *configs.AppConfig) {
		cfg.APIRate = 0.001
		cfg.APIBurst = 2
	})

	getJSON(t, server.URL+"/api/stats")
	getJSON(t, server.URL+"/api/ice-servers")

	res, err := http.Get(server.URL + "/api/stats")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)

	var body envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, errs.ErrRateLimitExceeded, body.Code)

	health, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode, "health is outside the API limiter")

	dial(t, server)
}

func TestWebSocketClosedOnShutdown(t *testing.T) {
	server, manager := newTestServer(t, nil)

	conn := dial(t, server)
	writeFrame(t, conn, voice.TypeJoinVoice, map[string]string{"userId": "alice"})
	readRoster(t, conn)

	manager.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure), "got %v", err)
}

func TestWebSocketMessageRateLimited(t *testing.T) {
	server, _ := newTestServer(t, func(cfg *configs.AppConfig) {
		cfg.MessageRate = 0.001
		cfg.MessageBurst = 1
	})

	conn := dial(t, server)
	writeFrame(t, conn, voice.TypeJoinVoice, map[string]string{"userId": "alice"})
	readRoster(t, conn)

	writeFrame(t, conn, voice.TypeMuteStatus, map[string]any{"userId": "alice", "isMuted": true})

	f := readFrame(t, conn)
	require.Equal(t, voice.TypeError, f.Type)
	var p voice.ErrorPayload
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	assert.Equal(t, errs.ErrRateLimitExceeded, p.Code)
}
