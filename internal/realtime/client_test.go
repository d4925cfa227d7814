package realtime

import (
	"Chatline/internal/pkg/consts"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func startServer(t *testing.T, hub *Hub, opts Options, handle Handler) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := strconv.ParseUint(r.URL.Query().Get("uid"), 10, 64)
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(hub, conn, uid, "user"+strconv.FormatUint(uid, 10), opts).Run(context.Background(), handle)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, uid uint64) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?uid="+strconv.FormatUint(uid, 10), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readFrame 读取下一个指定类型的帧，跳过在线状态等其他帧
func readFrame(t *testing.T, conn *websocket.Conn, eventType string) Frame {
	t.Helper()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %s: %v", eventType, err)
		}
		var f Frame
		if err = json.Unmarshal(data, &f); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if f.Type == eventType {
			return f
		}
	}
}

func errorPayload(t *testing.T, f Frame) (string, string) {
	t.Helper()
	var p struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := f.DecodePayload(&p); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return p.Code, p.Message
}

func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var ne interface{ Timeout() bool }
			if errors.As(err, &ne) && ne.Timeout() {
				t.Fatal("connection was not closed")
			}
			return
		}
	}
}

func TestHandlerErrorGoesToOriginatorWithRequestID(t *testing.T) {
	hub := NewHub(nil)
	opts := Options{Classify: func(err error) (string, string) { return consts.CodeForbidden, err.Error() }}
	url := startServer(t, hub, opts, func(ctx context.Context, c *Client, f Frame) error {
		return errors.New("blocked")
	})

	conn := dial(t, url, 1)
	if err := conn.WriteJSON(map[string]any{"type": "send", "requestId": "r-1", "payload": map[string]string{"conversationId": "x"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := readFrame(t, conn, consts.EventError)
	if f.RequestID != "r-1" {
		t.Fatalf("requestId = %q", f.RequestID)
	}
	if code, msg := errorPayload(t, f); code != consts.CodeForbidden || msg != "blocked" {
		t.Fatalf("error = %s %s", code, msg)
	}
}

func TestMalformedFramesCloseConnection(t *testing.T) {
	hub := NewHub(nil)
	url := startServer(t, hub, Options{MaxDecodeErrors: 3}, func(context.Context, *Client, Frame) error { return nil })
	conn := dial(t, url, 1)

	for i := 0; i < 3; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
			t.Fatalf("write: %v", err)
		}
		f := readFrame(t, conn, consts.EventError)
		if code, _ := errorPayload(t, f); code != consts.CodeValidation {
			t.Fatalf("code = %s", code)
		}
	}
	expectClosed(t, conn)
}

func TestFrameRateLimit(t *testing.T) {
	hub := NewHub(nil)
	opts := Options{FramesPerSecond: 0.001, FrameBurst: 1}
	handled := make(chan string, 4)
	url := startServer(t, hub, opts, func(_ context.Context, _ *Client, f Frame) error {
		handled <- f.RequestID
		return nil
	})
	conn := dial(t, url, 1)

	for _, id := range []string{"first", "second"} {
		if err := conn.WriteJSON(map[string]any{"type": "typing", "requestId": id}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	f := readFrame(t, conn, consts.EventError)
	if code, _ := errorPayload(t, f); code != consts.CodeRateLimited || f.RequestID != "second" {
		t.Fatalf("got %s for %s", code, f.RequestID)
	}
	if got := <-handled; got != "first" {
		t.Fatalf("handled %s", got)
	}
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	hub := NewHub(nil)
	url := startServer(t, hub, Options{MaxFrameBytes: 64}, func(context.Context, *Client, Frame) error { return nil })
	conn := dial(t, url, 1)

	big := `{"type":"send","payload":{"content":"` + strings.Repeat("x", 256) + `"}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(big)); err != nil {
		t.Fatalf("write: %v", err)
	}
	expectClosed(t, conn)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := NewHub(nil)
	url := startServer(t, hub, Options{}, func(context.Context, *Client, Frame) error { return nil })
	conn := dial(t, url, 7)

	readFrame(t, conn, consts.EventOnlineUserList)
	if !hub.IsOnline(7) {
		t.Fatal("user should be online")
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.IsOnline(7) {
		if time.Now().After(deadline) {
			t.Fatal("user still online after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEmitReachesConnectedClient(t *testing.T) {
	hub := NewHub(nil)
	url := startServer(t, hub, Options{}, func(ctx context.Context, c *Client, f Frame) error {
		c.Hub().Join(c, "conv")
		return nil
	})
	conn := dial(t, url, 5)
	readFrame(t, conn, consts.EventOnlineUserList)

	if err := conn.WriteJSON(map[string]any{"type": "join-room"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.EmitToConversation("conv", consts.EventUserTyping, map[string]any{"userId": 1}, "") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never joined")
		}
		time.Sleep(10 * time.Millisecond)
	}
	readFrame(t, conn, consts.EventUserTyping)
}
