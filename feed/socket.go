package feed

import (
	"bufio"
	"net"
	"strings"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"marketforge/core"
	"marketforge/logger"
)

// socketPayload is the minimal inline-JSON shape accepted on the socket
// feed protocol.
type socketPayload struct {
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"`
}

// SocketSource binds a listening TCP socket, accepts one client at a
// time, and parses newline-delimited JSON objects off the connection.
// On client disconnect it closes and re-awaits the next connection.
type SocketSource struct {
	StatusMachine
	addr      string
	telemetry *Telemetry
	log       *logger.Entry

	stop     chan struct{}
	listener net.Listener
}

// NewSocketSource constructs a socket feed source bound to addr
// ("host:port"). The listener is created lazily on Run so construction
// never blocks on network setup.
func NewSocketSource(addr string, log *logger.Log) *SocketSource {
	return &SocketSource{
		addr:      addr,
		telemetry: NewTelemetry(),
		log:       log.WithComponent("feed-socket"),
		stop:      make(chan struct{}),
	}
}

func (s *SocketSource) SourceTag() string { return "SRC_SOCKET_" + s.addr }

func (s *SocketSource) HasTelemetry() bool    { return true }
func (s *SocketSource) Telemetry() *Telemetry { return s.telemetry }

func (s *SocketSource) ResetStream() error { return nil }

func (s *SocketSource) ResetForRestart() {
	s.StatusMachine.ResetForRestart()
	s.stop = make(chan struct{})
}

func (s *SocketSource) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	if s.listener != nil {
		s.listener.Close()
	}
}

// Run accepts clients in a loop, reading newline-delimited JSON lines
// from each until it disconnects, then awaits the next one. It returns
// when Stop is called or the listener fails to bind.
func (s *SocketSource) Run(enqueue func(core.Order, core.AuthFlags)) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.log.WithError(err).WithFields(logger.Fields{"addr": s.addr}).Error("failed to bind socket source")
		return
	}
	s.listener = ln
	defer ln.Close()

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		type acceptResult struct {
			conn net.Conn
			err  error
		}
		accepted := make(chan acceptResult, 1)
		go func() {
			if tcpLn, ok := ln.(*net.TCPListener); ok {
				tcpLn.SetDeadline(time.Now().Add(200 * time.Millisecond))
			}
			conn, err := ln.Accept()
			accepted <- acceptResult{conn, err}
		}()

		select {
		case <-s.stop:
			return
		case res := <-accepted:
			if res.err != nil {
				continue
			}
			s.handleConnection(res.conn, enqueue)
		}
	}
}

func (s *SocketSource) handleConnection(conn net.Conn, enqueue func(core.Order, core.AuthFlags)) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			s.processLine(line, enqueue)
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
	}
}

func (s *SocketSource) processLine(line string, enqueue func(core.Order, core.AuthFlags)) {
	var payload socketPayload
	if err := sonnet.Unmarshal([]byte(line), &payload); err != nil {
		s.telemetry.Anomalies.Add(1)
		return
	}
	order, err := core.NewOrder(payload.Price, payload.Amount, payload.Timestamp)
	if err != nil {
		s.telemetry.Anomalies.Add(1)
		return
	}
	enqueue(order, core.Trusted)
	s.telemetry.OrdersReceived.Add(1)
}
