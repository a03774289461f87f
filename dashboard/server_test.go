package dashboard

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"marketforge/core"
	"marketforge/feed"
	"marketforge/logger"
)

func dialTestServer(t *testing.T, s *Server) (*websocket.Conn, func()) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func TestPublishCandleReachesClient(t *testing.T) {
	s := NewServer("127.0.0.1:0", logger.Logger())
	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	// give the server goroutine a moment to register the client before
	// publishing, since registration happens inside handleWebSocket.
	time.Sleep(20 * time.Millisecond)

	candle, err := core.NewCandlestick(100, 102, 99, 101, 4.5, 1725000000, 1725000060)
	if err != nil {
		t.Fatalf("new candlestick: %v", err)
	}
	s.PublishCandle(candle)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	if msg.Kind != "candle" {
		t.Fatalf("expected kind=candle, got %s", msg.Kind)
	}
	if msg.Candle == nil || msg.Candle.Open != 100 {
		t.Fatalf("unexpected candle payload: %+v", msg.Candle)
	}
}

func TestPublishTelemetryReachesClient(t *testing.T) {
	s := NewServer("127.0.0.1:0", logger.Logger())
	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	time.Sleep(20 * time.Millisecond)

	snaps := []feed.Snapshot{{SourceTag: "SRC_CSV_test", OrdersReceived: 3, Status: "Running"}}
	s.PublishTelemetry(snaps)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read message: %v", err)
	}
	if msg.Kind != "telemetry" || len(msg.Telemetry) != 1 {
		t.Fatalf("unexpected telemetry message: %+v", msg)
	}
	if msg.Telemetry[0].SourceTag != "SRC_CSV_test" {
		t.Fatalf("unexpected source tag: %s", msg.Telemetry[0].SourceTag)
	}
}

func TestBroadcastDropsOnFullBuffer(t *testing.T) {
	s := NewServer("127.0.0.1:0", logger.Logger())
	_, cleanup := dialTestServer(t, s)
	defer cleanup()
	time.Sleep(20 * time.Millisecond)

	// Flood well past the client channel's buffer without reading; none
	// of this should panic or block the publisher.
	for i := 0; i < 64; i++ {
		s.PublishTelemetry(nil)
	}
}

func TestMarshalForTest(t *testing.T) {
	b, err := marshalForTest(Message{Kind: "telemetry"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(b) == 0 {
		t.Fatal("expected non-empty json")
	}
}
