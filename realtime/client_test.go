package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type written struct {
	kind int
	data []byte
}

// fakeConn replays inbound messages and records every write.
type fakeConn struct {
	mu       sync.Mutex
	inbound  [][]byte
	writes   []written
	writeErr error
	closed   bool
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbound) == 0 {
		return 0, nil, io.EOF
	}
	msg := f.inbound[0]
	f.inbound = f.inbound[1:]
	return websocket.TextMessage, msg, nil
}

func (f *fakeConn) WriteMessage(kind int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, written{kind: kind, data: data})
	return nil
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) snapshot() ([]written, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]written, len(f.writes))
	copy(out, f.writes)
	return out, f.closed
}

func isClosed(c *Client) bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func runWritePump(c *Client) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		c.WritePump()
		close(done)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write pump did not return")
	}
}

func TestReadPumpHandlesFramesUntilDisconnect(t *testing.T) {
	hub := NewHub()
	conn := &fakeConn{inbound: [][]byte{
		[]byte("not json"),
		[]byte(`{"data":{"room_id":"r1"}}`),
		[]byte(`{"event":"join_room","data":{"room_id":"r1"},"ack_id":"7"}`),
	}}
	c := NewClient("a", "u1", "user", conn)
	hub.Subscribe(c, RoomChannel("r1"))
	hub.Subscribe(c, UserChannel("u1"))

	var handled []Frame
	c.ReadPump(hub, func(_ *Client, f Frame) {
		handled = append(handled, f)
	})

	require.Len(t, handled, 1)
	assert.Equal(t, "join_room", handled[0].Event)
	assert.Equal(t, "7", handled[0].AckID)
	assert.JSONEq(t, `{"room_id":"r1"}`, string(handled[0].Data))

	require.Len(t, c.Send(), 2)
	for i := 0; i < 2; i++ {
		frame := readFrame(t, c)
		assert.Equal(t, "error", frame["event"])
		assert.Equal(t, "malformed frame", frame["data"].(map[string]interface{})["message"])
	}

	assert.True(t, isClosed(c))
	assert.Equal(t, 0, hub.ChannelSize(RoomChannel("r1")))
	assert.Equal(t, 0, hub.ChannelSize(UserChannel("u1")))
}

func TestWritePumpDeliversThenSendsCloseFrame(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient("a", "u1", "user", conn)
	done := runWritePump(c)

	c.Reply("exam_started", map[string]string{"room_id": "r1"})
	require.Eventually(t, func() bool {
		writes, _ := conn.snapshot()
		return len(writes) == 1
	}, 2*time.Second, 5*time.Millisecond)

	c.Close()
	waitDone(t, done)

	writes, closed := conn.snapshot()
	require.Len(t, writes, 2)
	assert.Equal(t, websocket.TextMessage, writes[0].kind)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(writes[0].data, &out))
	assert.Equal(t, "exam_started", out["event"])
	assert.Equal(t, websocket.CloseMessage, writes[1].kind)
	assert.True(t, closed)
}

func TestDroppedSlowClientReceivesCloseFrame(t *testing.T) {
	hub := NewHub()
	conn := &fakeConn{}
	c := NewClient("slow", "u1", "user", conn)
	hub.Subscribe(c, RoomChannel("r1"))

	for i := 0; i <= sendBufferSize; i++ {
		hub.EmitToRoom("r1", "score_updated", i)
	}
	require.True(t, isClosed(c))
	assert.Equal(t, 0, hub.ChannelSize(RoomChannel("r1")))

	waitDone(t, runWritePump(c))

	writes, closed := conn.snapshot()
	require.NotEmpty(t, writes)
	assert.Equal(t, websocket.CloseMessage, writes[len(writes)-1].kind)
	assert.LessOrEqual(t, len(writes), sendBufferSize+1)
	assert.True(t, closed)
}

func TestWritePumpStopsOnWriteError(t *testing.T) {
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	c := NewClient("a", "u1", "user", conn)
	done := runWritePump(c)

	c.Reply("exam_started", nil)
	waitDone(t, done)

	_, closed := conn.snapshot()
	assert.True(t, closed)
	assert.True(t, isClosed(c))

	c.Reply("late", nil)
	assert.Len(t, c.Send(), 0)
}
