package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JvstinNgvyen/space-scrap/internal/game/roomcode"
	"github.com/JvstinNgvyen/space-scrap/internal/game/session"
)

type testServer struct {
	srv     *httptest.Server
	handler *Handler
	coord   *session.Coordinator
}

func newTestServer(t *testing.T, allowedOrigins []string) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	coord := session.NewCoordinator(
		session.NewMemoryStore(),
		roomcode.New(roomcode.DefaultLength),
		time.Minute,
		0,
		logger,
	)
	h := NewHandler(coord, logger, allowedOrigins, 100, 200)
	srv := httptest.NewServer(NewRouter(h, coord, allowedOrigins))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, handler: h, coord: coord}
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Type: msgType, Payload: body}))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func decodePayload[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var p T
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	return p
}

// createRoomOn drives a connection through create-room and returns the
// allocated room id.
func createRoomOn(t *testing.T, conn *websocket.Conn, name string) string {
	t.Helper()
	writeEnvelope(t, conn, msgCreateRoom, createRoomPayload{DisplayName: name})
	env := readEnvelope(t, conn)
	require.Equal(t, session.MsgRoomCreated, env.Type)
	p := decodePayload[session.RoomCreatedPayload](t, env)
	require.NotEmpty(t, p.RoomID)
	return p.RoomID
}

func TestWebSocketCreateAndJoin(t *testing.T) {
	ts := newTestServer(t, nil)

	connA := ts.dial(t)
	roomID := createRoomOn(t, connA, "Kira")

	connB := ts.dial(t)
	writeEnvelope(t, connB, msgJoinRoom, joinRoomPayload{RoomID: roomID, DisplayName: "Rook"})

	env := readEnvelope(t, connB)
	require.Equal(t, session.MsgRoomJoined, env.Type)
	joined := decodePayload[session.RoomJoinedPayload](t, env)
	assert.Equal(t, roomID, joined.RoomID)
	assert.Equal(t, session.SlotB, joined.SlotLabel)
	require.Len(t, joined.Roster, 2)
	assert.Equal(t, "Kira", joined.Roster[0].DisplayName)
	assert.Equal(t, "Rook", joined.Roster[1].DisplayName)

	env = readEnvelope(t, connA)
	require.Equal(t, session.MsgPlayerJoined, env.Type)
	notice := decodePayload[session.PlayerEventPayload](t, env)
	assert.Equal(t, session.SlotB, notice.SlotLabel)
	assert.Equal(t, "Rook", notice.DisplayName)
}

func TestWebSocketJoinUnknownRoom(t *testing.T) {
	ts := newTestServer(t, nil)

	conn := ts.dial(t)
	writeEnvelope(t, conn, msgJoinRoom, joinRoomPayload{RoomID: "ZZZZZZ", DisplayName: "Rook"})

	env := readEnvelope(t, conn)
	assert.Equal(t, session.MsgError, env.Type)
}

func TestWebSocketObjectUpdateRelay(t *testing.T) {
	ts := newTestServer(t, nil)

	connA := ts.dial(t)
	roomID := createRoomOn(t, connA, "Kira")

	connB := ts.dial(t)
	writeEnvelope(t, connB, msgJoinRoom, joinRoomPayload{RoomID: roomID, DisplayName: "Rook"})
	require.Equal(t, session.MsgRoomJoined, readEnvelope(t, connB).Type)
	require.Equal(t, session.MsgPlayerJoined, readEnvelope(t, connA).Type)

	// Slot A holds the first turn.
	transform := json.RawMessage(`{"position":[1,2,3]}`)
	writeEnvelope(t, connA, msgObjectUpdate, objectUpdatePayload{
		RoomID:    roomID,
		ObjectID:  "ship1",
		Transform: transform,
	})

	env := readEnvelope(t, connB)
	require.Equal(t, session.MsgObjectUpdated, env.Type)
	updated := decodePayload[session.ObjectUpdatedPayload](t, env)
	assert.Equal(t, "ship1", updated.ObjectID)
	assert.JSONEq(t, string(transform), string(updated.Transform))

	// B is out of turn, so B's update is rejected and never reaches A.
	writeEnvelope(t, connB, msgObjectUpdate, objectUpdatePayload{
		RoomID:    roomID,
		ObjectID:  "ship2",
		Transform: transform,
	})
	env = readEnvelope(t, connB)
	assert.Equal(t, session.MsgError, env.Type)
}

func TestWebSocketTurnHandoff(t *testing.T) {
	ts := newTestServer(t, nil)

	connA := ts.dial(t)
	roomID := createRoomOn(t, connA, "Kira")

	connB := ts.dial(t)
	writeEnvelope(t, connB, msgJoinRoom, joinRoomPayload{RoomID: roomID, DisplayName: "Rook"})
	require.Equal(t, session.MsgRoomJoined, readEnvelope(t, connB).Type)
	require.Equal(t, session.MsgPlayerJoined, readEnvelope(t, connA).Type)

	writeEnvelope(t, connA, msgEndTurn, roomRefPayload{RoomID: roomID})

	for _, conn := range []*websocket.Conn{connA, connB} {
		env := readEnvelope(t, conn)
		require.Equal(t, session.MsgTurnChanged, env.Type)
		p := decodePayload[session.TurnChangedPayload](t, env)
		assert.Equal(t, session.SlotB, p.Turn)
		assert.Equal(t, 2, p.TurnNumber)
	}
}

func TestWebSocketRejectsDisallowedOrigin(t *testing.T) {
	ts := newTestServer(t, []string{"https://play.example.com"})

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(ts.wsURL(), header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL(), http.Header{
		"Origin": []string{"https://play.example.com"},
	})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomInfoEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	conn := ts.dial(t)
	roomID := createRoomOn(t, conn, "Kira")

	resp, err := http.Get(ts.srv.URL + "/api/rooms/" + roomID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info session.RoomInfoPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, roomID, info.RoomID)
	require.Len(t, info.Roster, 1)
	assert.Equal(t, "Kira", info.Roster[0].DisplayName)

	missing, err := http.Get(ts.srv.URL + "/api/rooms/ZZZZZZ")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestClientCountAndCloseAll(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.dial(t)

	require.Eventually(t, func() bool {
		return ts.handler.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	ts.handler.CloseAll()

	require.Eventually(t, func() bool {
		return ts.handler.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
