package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-io-live/chat-sync/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-sync/pkg/log"
)

const testTimeout = 3 * time.Second

type testServer struct {
	srv      *httptest.Server
	conns    chan *websocket.Conn
	accepted atomic.Int32
	// accept limits how many upgrades succeed; zero means unlimited.
	accept int32
	// greet is written to every connection right after the upgrade.
	greet [][]byte
}

func newTestServer(t *testing.T, accept int32, greet ...[]byte) *testServer {
	t.Helper()
	ts := &testServer{conns: make(chan *websocket.Conn, 8), accept: accept, greet: greet}
	upgrader := websocket.Upgrader{}

	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.accepted.Add(1)
		if ts.accept > 0 && n > ts.accept {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		t.Cleanup(func() { ws.Close() })
		for _, frame := range ts.greet {
			ws.WriteMessage(websocket.TextMessage, frame)
		}
		ts.conns <- ws
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) url() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *testServer) next(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-ts.conns:
		return ws
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

func readEnvelope(t *testing.T, ws *websocket.Conn) domain.Envelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(testTimeout))
	var env domain.Envelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	return env
}

func writeEnvelope(t *testing.T, ws *websocket.Conn, eventType string, payload interface{}) {
	t.Helper()
	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if err := ws.WriteJSON(env); err != nil {
		t.Fatalf("writing frame: %v", err)
	}
}

func dialTest(t *testing.T, ts *testServer, handlers Handlers) Conn {
	t.Helper()
	d := NewWSDialer(WSConfig{URL: ts.url()}, log.Nop())
	conn, err := d.Dial(context.Background(), "u1", handlers)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWSDialEmitsJoinRoom(t *testing.T) {
	ts := newTestServer(t, 0)
	dialTest(t, ts, nil)

	env := readEnvelope(t, ts.next(t))
	if env.Type != domain.EventJoinRoom {
		t.Fatalf("type = %q, want join_room", env.Type)
	}
	var selfID string
	if err := json.Unmarshal(env.Data, &selfID); err != nil || selfID != "u1" {
		t.Errorf("data = %s", env.Data)
	}
}

func TestWSDispatchesInboundEvents(t *testing.T) {
	ts := newTestServer(t, 0)
	conn := dialTest(t, ts, nil)

	got := make(chan []byte, 1)
	conn.On(domain.EventReceiveMessage, func(ctx context.Context, data []byte) {
		got <- data
	})

	ws := ts.next(t)
	readEnvelope(t, ws)

	ws.WriteMessage(websocket.TextMessage, []byte("not json"))
	writeEnvelope(t, ws, "something_else", map[string]string{"x": "y"})
	writeEnvelope(t, ws, domain.EventReceiveMessage, domain.Message{ID: "m1", RoomID: "r1", Content: "hi"})

	select {
	case data := <-got:
		var msg domain.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if msg.ID != "m1" || msg.Content != "hi" {
			t.Errorf("msg = %+v", msg)
		}
	case <-time.After(testTimeout):
		t.Fatal("handler not called")
	}
}

func TestWSEmitFrames(t *testing.T) {
	ts := newTestServer(t, 0)
	conn := dialTest(t, ts, nil)
	ws := ts.next(t)
	readEnvelope(t, ws)

	payload := domain.SendMessagePayload{
		RoomID:  "r1",
		Message: domain.OutgoingMessage{RoomID: "r1", Sender: "u1", Content: "hello"},
	}
	if err := conn.Emit(context.Background(), domain.EventSendMessage, payload); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	env := readEnvelope(t, ws)
	if env.Type != domain.EventSendMessage {
		t.Fatalf("type = %q", env.Type)
	}
	var got domain.SendMessagePayload
	json.Unmarshal(env.Data, &got)
	if got != payload {
		t.Errorf("payload = %+v", got)
	}
}

func TestWSCloseIsClean(t *testing.T) {
	ts := newTestServer(t, 0)
	conn := dialTest(t, ts, nil)

	conn.Close()

	select {
	case <-conn.Done():
	case <-time.After(testTimeout):
		t.Fatal("Done not closed")
	}
	if conn.Err() != nil {
		t.Errorf("Err after Close = %v, want nil", conn.Err())
	}
	err := conn.Emit(context.Background(), domain.EventSendMessage, nil)
	if !domain.IsConnectionError(err) {
		t.Errorf("Emit after Close = %v, want *ConnectionError", err)
	}
}

func TestWSServerCloseEndsConn(t *testing.T) {
	ts := newTestServer(t, 0)
	conn := dialTest(t, ts, nil)

	ws := ts.next(t)
	readEnvelope(t, ws)
	ws.Close()

	select {
	case <-conn.Done():
	case <-time.After(testTimeout):
		t.Fatal("Done not closed after server hangup")
	}
	if !domain.IsConnectionError(conn.Err()) {
		t.Errorf("Err = %v, want *ConnectionError", conn.Err())
	}
}

func TestWSDialFailure(t *testing.T) {
	ts := newTestServer(t, 0)
	url := ts.url()
	ts.srv.Close()

	d := NewWSDialer(WSConfig{URL: url, HandshakeTimeout: time.Second}, log.Nop())
	_, err := d.Dial(context.Background(), "u1", nil)
	if !domain.IsConnectionError(err) {
		t.Fatalf("err = %v, want *ConnectionError", err)
	}
}

func TestReconnectingDialerRedials(t *testing.T) {
	ts := newTestServer(t, 0)
	d := NewReconnectingDialer(
		NewWSDialer(WSConfig{URL: ts.url()}, log.Nop()),
		ReconnectConfig{InitialInterval: 10 * time.Millisecond, MaxInterval: 50 * time.Millisecond, MaxElapsedTime: testTimeout},
		log.Nop(),
	)

	conn, err := d.Dial(context.Background(), "u1", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	reconnected := make(chan struct{}, 1)
	r, ok := conn.(Reconnector)
	if !ok {
		t.Fatal("reconnecting conn does not implement Reconnector")
	}
	r.OnReconnect(func(ctx context.Context) { reconnected <- struct{}{} })

	got := make(chan []byte, 1)
	conn.On(domain.EventNewRoom, func(ctx context.Context, data []byte) { got <- data })

	first := ts.next(t)
	readEnvelope(t, first)
	first.Close()

	second := ts.next(t)
	if env := readEnvelope(t, second); env.Type != domain.EventJoinRoom {
		t.Fatalf("first frame after redial = %q, want join_room", env.Type)
	}

	select {
	case <-reconnected:
	case <-time.After(testTimeout):
		t.Fatal("reconnect hook not called")
	}

	writeEnvelope(t, second, domain.EventNewRoom, "r9")
	select {
	case data := <-got:
		if string(data) != `"r9"` {
			t.Errorf("data = %s", data)
		}
	case <-time.After(testTimeout):
		t.Fatal("handler not carried over to the new connection")
	}

	if err := conn.Emit(context.Background(), domain.EventSendMessage, map[string]string{"room_id": "r9"}); err != nil {
		t.Fatalf("Emit after redial: %v", err)
	}
	if env := readEnvelope(t, second); env.Type != domain.EventSendMessage {
		t.Errorf("type = %q", env.Type)
	}
}

func TestReconnectingDialerGivesUp(t *testing.T) {
	ts := newTestServer(t, 1)
	d := NewReconnectingDialer(
		NewWSDialer(WSConfig{URL: ts.url(), HandshakeTimeout: time.Second}, log.Nop()),
		ReconnectConfig{InitialInterval: 10 * time.Millisecond, MaxInterval: 20 * time.Millisecond, MaxElapsedTime: 200 * time.Millisecond},
		log.Nop(),
	)

	conn, err := d.Dial(context.Background(), "u1", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	first := ts.next(t)
	readEnvelope(t, first)
	first.Close()

	select {
	case <-conn.Done():
	case <-time.After(testTimeout):
		t.Fatal("conn still alive after redial budget")
	}
	if !domain.IsConnectionError(conn.Err()) {
		t.Errorf("Err = %v, want *ConnectionError", conn.Err())
	}
}

func TestWSDialDeliversFramesSentOnConnect(t *testing.T) {
	greeting, err := encodeFrame(domain.EventReceiveMessage, domain.Message{ID: "m0", RoomID: "r1", Content: "welcome"})
	if err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, 0, greeting)

	got := make(chan []byte, 1)
	dialTest(t, ts, Handlers{
		domain.EventReceiveMessage: func(ctx context.Context, data []byte) { got <- data },
	})

	select {
	case data := <-got:
		var msg domain.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.ID != "m0" {
			t.Errorf("data = %s", data)
		}
	case <-time.After(testTimeout):
		t.Fatal("frame sent on connect was dropped")
	}
}

func TestReconnectingDialerDeliversFramesSentOnRedial(t *testing.T) {
	greeting, err := encodeFrame(domain.EventNewRoom, "r9")
	if err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, 0, greeting)
	d := NewReconnectingDialer(
		NewWSDialer(WSConfig{URL: ts.url()}, log.Nop()),
		ReconnectConfig{InitialInterval: 10 * time.Millisecond, MaxInterval: 50 * time.Millisecond, MaxElapsedTime: testTimeout},
		log.Nop(),
	)

	got := make(chan []byte, 2)
	conn, err := d.Dial(context.Background(), "u1", Handlers{
		domain.EventNewRoom: func(ctx context.Context, data []byte) { got <- data },
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	wait := func(what string) {
		t.Helper()
		select {
		case data := <-got:
			if string(data) != `"r9"` {
				t.Errorf("%s: data = %s", what, data)
			}
		case <-time.After(testTimeout):
			t.Fatalf("%s: frame sent on connect was dropped", what)
		}
	}

	wait("first connection")
	first := ts.next(t)
	first.Close()

	ts.next(t)
	wait("after redial")
}
