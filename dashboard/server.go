// Package dashboard hosts a small net/http + gorilla/websocket
// telemetry-streaming endpoint: the Go-native, ambient-observability
// replacement for the teacher's gin-based monitoring dashboard. It
// pushes feed telemetry snapshots and completed candlesticks to
// connected browsers as they happen, rather than serving a polling
// REST API.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketforge/core"
	"marketforge/feed"
	"marketforge/logger"
)

// Message is the envelope streamed to every connected client. Kind is
// either "telemetry" or "candle"; exactly one of the two payload fields
// is populated.
type Message struct {
	Kind      string          `json:"kind"`
	Telemetry []feed.Snapshot `json:"telemetry,omitempty"`
	Candle    *core.Candlestick `json:"candle,omitempty"`
	Emitted   time.Time       `json:"emitted"`
}

// Server is the telemetry-streaming endpoint. It is safe to call
// Publish* from any goroutine; slow or disconnected clients are dropped
// rather than allowed to block the publisher.
type Server struct {
	addr       string
	log        *logger.Entry
	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan Message
}

// NewServer constructs a dashboard server bound to addr (e.g.
// "127.0.0.1:8090"). Call Start to begin serving.
func NewServer(addr string, log *logger.Log) *Server {
	s := &Server{
		addr:    addr,
		log:     log.WithComponent("dashboard"),
		clients: make(map[*websocket.Conn]chan Message),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/telemetry", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins serving in the background. Errors after a successful
// bind (including the expected http.ErrServerClosed on Stop) are logged,
// not returned, matching the fire-and-forget goroutine pattern the
// engine uses for its other background loops.
func (s *Server) Start() error {
	ln, err := newTCPListener(s.addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("dashboard server stopped unexpectedly")
		}
	}()
	s.log.WithFields(logger.Fields{"addr": s.addr}).Info("dashboard telemetry endpoint listening")
	return nil
}

// Stop gracefully shuts down the HTTP server, closing every connected
// client's write channel.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for conn, ch := range s.clients {
		close(ch)
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]chan Message)
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	ch := make(chan Message, 32)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for msg := range ch {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// PublishTelemetry broadcasts a telemetry snapshot to every connected
// client, dropping the message for any client whose send buffer is
// full rather than blocking.
func (s *Server) PublishTelemetry(snapshots []feed.Snapshot) {
	s.broadcast(Message{Kind: "telemetry", Telemetry: snapshots, Emitted: time.Now()})
}

// PublishCandle broadcasts a completed candlestick. It is designed to be
// used directly as the CandleGenerator's dispatch callback.
func (s *Server) PublishCandle(candle core.Candlestick) {
	s.broadcast(Message{Kind: "candle", Candle: &candle, Emitted: time.Now()})
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, ch := range s.clients {
		select {
		case ch <- msg:
		default:
			s.log.WithFields(logger.Fields{"remote": conn.RemoteAddr().String()}).Warn("dashboard client send buffer full, dropping message")
		}
	}
}

// marshalForTest is exposed only so package tests can assert on wire
// shape without standing up a real websocket round trip.
func marshalForTest(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
