package realtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startHubServer(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil)
	go hub.Run(ctx)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listener not permitted in this environment: %v", err)
	}

	srv := httptest.NewUnstartedServer(http.HandlerFunc(hub.ServeWS))
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})

	return hub, conn
}

func TestHub_Broadcast(t *testing.T) {
	t.Parallel()

	hub, conn := startHubServer(t)

	msg := []byte("hello world")
	select {
	case hub.Broadcast <- msg:
	case <-time.After(time.Second):
		t.Fatalf("timed out sending to hub")
	}

	readCh := make(chan []byte, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read message: %v", err)
			return
		}
		readCh <- data
	}()

	select {
	case got := <-readCh:
		if string(got) != string(msg) {
			t.Fatalf("expected %q, got %q", msg, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for broadcast")
	}
}

func TestHub_NotifyDeliversNotice(t *testing.T) {
	t.Parallel()

	hub, conn := startHubServer(t)

	readCh := make(chan []byte, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read message: %v", err)
			return
		}
		readCh <- data
	}()

	// The hub drops notices when nothing drains the broadcast channel
	// yet, so keep notifying until the client sees one.
	deadline := time.After(2 * time.Second)
	for {
		hub.Notify("student.courseenrolled", 2, "")
		select {
		case data := <-readCh:
			var notice Notice
			if err := json.Unmarshal(data, &notice); err != nil {
				t.Fatalf("unmarshal notice: %v", err)
			}
			if notice.EventType != "student.courseenrolled" || notice.StudentID != 2 {
				t.Fatalf("unexpected notice: %+v", notice)
			}
			if notice.At.IsZero() {
				t.Fatalf("expected timestamp on notice")
			}
			return
		case <-deadline:
			t.Fatalf("timed out waiting for notice")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestHub_NotifyWithoutRunDoesNotBlock(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		hub.Notify("student.created", 1, "")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Notify blocked with no running hub")
	}
}
