package proxy

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"marketforge/logger"
)

// httpMethodTokens is the set of first-bytes patterns that make a peek
// of the client's opening bytes look like an HTTP request, used to
// decide whether a connect failure gets an HTTP-friendly error instead
// of a bare close.
var httpMethodTokens = []string{"GET ", "POST ", "PUT ", "HEAD ", "DELETE ", "OPTIONS ", "PATCH "}

// Listener is the proxy's accept loop: it owns the listening socket, an
// active-connection counter used for both max_connections rejection and
// adaptive back-pressure, and the registry of live connections (each
// handler removes its own entry when it finishes).
type Listener struct {
	cfg Config
	log *logger.Log

	ln net.Listener

	active int64 // atomic

	mu    sync.Mutex
	conns map[string]*Connection

	running atomic.Bool

	backpressure *rate.Limiter
}

// NewListener constructs a Listener bound to cfg's listen host/port. The
// network family is dual-stack ("tcp") unless V6Only requests an
// IPv6-only listener.
func NewListener(cfg Config, log *logger.Log) (*Listener, error) {
	network := "tcp"
	if cfg.V6Only {
		network = "tcp6"
	}
	addr := net.JoinHostPort(cfg.ListenHost, strconv.Itoa(cfg.ListenPort))
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	l := &Listener{
		cfg:          cfg,
		log:          log,
		ln:           ln,
		conns:        make(map[string]*Connection),
		backpressure: rate.NewLimiter(rate.Every(20*time.Millisecond), 1),
	}
	l.running.Store(true)
	return l, nil
}

// Addr returns the bound listen address, useful in tests that bind to
// an ephemeral port.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Run accepts connections until ctx is cancelled or Close is called. It
// also starts cleanupLoop, whose 250ms tick does no reaping; finished
// handlers remove themselves from the registry.
func (l *Listener) Run(ctx context.Context) error {
	go l.cleanupLoop(ctx)

	entry := l.log.WithComponent("proxy-listener")
	entry.WithFields(logger.Fields{"addr": l.ln.Addr().String()}).Info("proxy listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		l.applyBackpressure()

		if tl, ok := l.ln.(*net.TCPListener); ok {
			tl.SetDeadline(time.Now().Add(pollTimeout))
		}
		conn, err := l.ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !l.running.Load() {
				return nil
			}
			entry.WithError(err).Warn("accept error")
			continue
		}

		if atomic.LoadInt64(&l.active) >= int64(l.cfg.MaxConns) {
			l.rejectConnection(conn)
			continue
		}

		go l.handleConnection(conn)
	}
}

// applyBackpressure throttles the accept loop itself once active
// connections reach 80% of MaxConns, via a token-bucket limiter rather
// than a hand-computed sleep: each accept beyond the threshold waits for
// a token, capped at 50ms so the loop still notices shutdown promptly.
func (l *Listener) applyBackpressure() {
	active := atomic.LoadInt64(&l.active)
	max := int64(l.cfg.MaxConns)
	if max <= 0 {
		return
	}
	ratio := float64(active) / float64(max)
	if ratio < 0.8 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	l.backpressure.Wait(ctx)
}

// rejectConnection is taken when active connections are already at
// MaxConns. If the client's first bytes look like an HTTP request and
// HTTPFriendlyErrors is set, it replies 429 before closing; otherwise it
// closes immediately.
func (l *Listener) rejectConnection(conn net.Conn) {
	defer conn.Close()
	if l.cfg.HTTPFriendlyErrors && looksLikeHTTP(conn) {
		fmt.Fprint(conn, "HTTP/1.1 429 Too Many Requests\r\nConnection: close\r\nContent-Length: 0\r\n\r\n")
	}
}

// looksLikeHTTP peeks the connection's first bytes (with a short
// deadline) to see if they match a known HTTP method token.
func looksLikeHTTP(conn net.Conn) bool {
	conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	defer conn.SetReadDeadline(time.Time{})

	r := bufio.NewReader(conn)
	peek, err := r.Peek(8)
	if err != nil {
		return false
	}
	s := string(peek)
	for _, tok := range httpMethodTokens {
		if strings.HasPrefix(s, tok) {
			return true
		}
	}
	return false
}

// handleConnection dials the upstream with a bounded timeout, and on
// success wires up a Connection and runs it to completion. On dial
// failure, it applies the connect-fail policy: HTTP 503 for
// HTTP-looking clients when HTTPFriendlyErrors is set, RST close when
// RSTOnUpstreamConnectFail is set, plain close otherwise.
func (l *Listener) handleConnection(client net.Conn) {
	atomic.AddInt64(&l.active, 1)
	defer atomic.AddInt64(&l.active, -1)

	entry := l.log.WithComponent("proxy-connection").WithFields(logger.Fields{"remote": client.RemoteAddr().String()})

	upstreamAddr := net.JoinHostPort(l.cfg.UpstreamHost, strconv.Itoa(l.cfg.UpstreamPort))
	upstream, err := net.DialTimeout("tcp", upstreamAddr, l.cfg.connectTimeout())
	if err != nil {
		entry.WithError(err).Warn("upstream dial failed")
		l.handleConnectFailure(client)
		return
	}

	id := uuid.NewString()
	conn := NewConnection(id, l.cfg, client, upstream, l.log)

	l.mu.Lock()
	l.conns[id] = conn
	l.mu.Unlock()

	entry.WithFields(logger.Fields{"conn_id": id, "upstream": upstreamAddr}).Info("connection established")
	conn.Run()

	l.mu.Lock()
	delete(l.conns, id)
	l.mu.Unlock()
}

func (l *Listener) handleConnectFailure(client net.Conn) {
	defer client.Close()
	if l.cfg.HTTPFriendlyErrors && looksLikeHTTP(client) {
		fmt.Fprint(client, "HTTP/1.1 503 Service Unavailable\r\nConnection: close\r\nContent-Length: 0\r\n\r\n")
		return
	}
	if l.cfg.RSTOnUpstreamConnectFail {
		rstClose(client)
	}
}

// cleanupLoop does no work of its own today: handleConnection already
// removes its entry from l.conns synchronously on return, so there is
// nothing left to sweep. It exists as a place to hang a future eviction
// policy (e.g. killing connections stuck past a max lifetime) and to
// give shutdown a goroutine to join via ctx cancellation.
func (l *Listener) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ActiveConnections reports the current active-connection count.
func (l *Listener) ActiveConnections() int {
	return int(atomic.LoadInt64(&l.active))
}

// Snapshots returns a stats snapshot for every live connection.
func (l *Listener) Snapshots() []ConnectionStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ConnectionStats, 0, len(l.conns))
	for _, c := range l.conns {
		out = append(out, c.Stats())
	}
	return out
}

// Close stops accepting new connections and force-stops every live one.
func (l *Listener) Close() error {
	l.running.Store(false)
	err := l.ln.Close()

	l.mu.Lock()
	conns := make([]*Connection, 0, len(l.conns))
	for _, c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	for _, c := range conns {
		c.Stop()
	}
	return err
}
