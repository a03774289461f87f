package proxy

import (
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	"marketforge/logger"
)

// PipeResult is the detailed outcome of a single send attempt through
// the safe-send routine, matching the original's
// {Success, WouldBlock, Closed, Error} vocabulary.
type PipeResult int

const (
	PipeSuccess PipeResult = iota
	PipeWouldBlock
	PipeClosed
	PipeError
)

// pollTimeout bounds every blocking read/write wait so the stop flag is
// re-checked at least this often, standing in for the original's
// poll(2) 100ms timeout.
const pollTimeout = 100 * time.Millisecond

// subChunkSize is the size impaired sends are split into before drop/
// duplicate/latency decisions are made per-chunk.
const subChunkSize = 1400

// Connection holds all per-accepted-TCP-connection state: both legs,
// per-direction stats, per-direction PRNG, and per-direction token
// bucket. A Connection is never shared between goroutines other than
// its own two forwarders and the owning listener's monitor.
type Connection struct {
	id      string
	cfg     Config
	client  net.Conn
	upstream net.Conn
	log     *logger.Entry

	upStats   DirectionStats
	downStats DirectionStats

	upThrottle   *Throttle
	downThrottle *Throttle

	upRNG   *rand.Rand
	downRNG *rand.Rand

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	openedAt time.Time
}

// NewConnection wires up a Connection around an already-accepted client
// leg and an already-dialed upstream leg.
func NewConnection(id string, cfg Config, client, upstream net.Conn, log *logger.Log) *Connection {
	c := &Connection{
		id:       id,
		cfg:      cfg,
		client:   client,
		upstream: upstream,
		log:      log.WithComponent("proxy-connection").WithFields(logger.Fields{"conn_id": id}),
		stop:     make(chan struct{}),
		openedAt: time.Now(),
	}
	c.upThrottle = NewThrottle(cfg.BandwidthKbps, cfg.EnableBurst, cfg.BurstSeconds)
	c.downThrottle = NewThrottle(cfg.BandwidthKbps, cfg.EnableBurst, cfg.BurstSeconds)
	c.upRNG = newConnectionRNG(cfg.Seed, connIDHash(id), 1)
	c.downRNG = newConnectionRNG(cfg.Seed, connIDHash(id), 2)
	return c
}

func connIDHash(id string) int64 {
	var h int64 = 1469598103934665603 // FNV offset basis
	for i := 0; i < len(id); i++ {
		h ^= int64(id[i])
		h *= 1099511628211
	}
	return h
}

// Run spawns one forwarder goroutine per enabled direction and an idle
// monitor, and blocks until the connection tears down (stopped
// explicitly, idle timeout, or either leg closing).
func (c *Connection) Run() {
	if c.cfg.forwardsUp() {
		c.wg.Add(1)
		go c.forward("up", c.client, c.upstream, &c.upStats, c.upThrottle, c.upRNG)
	} else if c.cfg.HalfClose {
		halfCloseWrite(c.upstream)
	}

	if c.cfg.forwardsDown() {
		c.wg.Add(1)
		go c.forward("down", c.upstream, c.client, &c.downStats, c.downThrottle, c.downRNG)
	} else if c.cfg.HalfClose {
		halfCloseWrite(c.client)
	}

	c.wg.Add(1)
	go c.monitorIdle()

	c.wg.Wait()
}

// Stop requests teardown; safe to call more than once or concurrently.
func (c *Connection) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Connection) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// monitorIdle force-stops the connection once the more-recently-active
// direction has been silent longer than IdleTimeoutSec.
func (c *Connection) monitorIdle() {
	defer c.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	idle := c.cfg.idleTimeout()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			up := c.upStats.lastActivityTime()
			down := c.downStats.lastActivityTime()
			last := up
			if down.After(last) {
				last = down
			}
			if last.IsZero() {
				last = c.openedAt
			}
			if time.Since(last) > idle {
				c.log.WithFields(logger.Fields{"idle_for": time.Since(last).String()}).Info("connection idle timeout, forcing close")
				c.Stop()
				c.teardown()
				return
			}
		}
	}
}

// teardown applies the shutdown policy: RSTOnMidstreamErrors produces a
// linger-zero RST close; otherwise both legs are closed with a plain
// Close.
func (c *Connection) teardown() {
	if c.cfg.RSTOnMidstreamErrors {
		rstClose(c.client)
		rstClose(c.upstream)
		return
	}
	c.client.Close()
	c.upstream.Close()
}

// forward runs the blocking copy loop for one direction: poll src for
// readability (via a read deadline standing in for poll(2) + 100ms
// timeout), and on data either fast-path it through the throttle or run
// it through the impairment pipeline.
func (c *Connection) forward(direction string, src, dst net.Conn, stats *DirectionStats, throttle *Throttle, rng *rand.Rand) {
	defer c.wg.Done()
	defer c.teardown()

	buf := make([]byte, c.cfg.BufferBytes)
	impaired := c.cfg.LatencyMs > 0 || c.cfg.JitterMs > 0 || c.cfg.DropRate > 0 || c.cfg.DupRate > 0

	for {
		if c.stopped() {
			return
		}

		src.SetReadDeadline(time.Now().Add(pollTimeout))
		n, err := src.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if err != io.EOF {
				c.log.WithError(err).WithFields(logger.Fields{"direction": direction}).Debug("read error, tearing down")
			}
			return
		}
		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		var result PipeResult
		if impaired {
			result = c.forwardImpaired(dst, data, stats, throttle, rng)
		} else {
			result = c.sendThrottled(dst, data, throttle, stats)
		}

		if result == PipeClosed || result == PipeError {
			return
		}
	}
}

// forwardImpaired splits data into ~1400-byte sub-chunks and applies the
// drop/latency/duplicate pipeline to each in turn.
func (c *Connection) forwardImpaired(dst net.Conn, data []byte, stats *DirectionStats, throttle *Throttle, rng *rand.Rand) PipeResult {
	for len(data) > 0 {
		n := subChunkSize
		if n > len(data) {
			n = len(data)
		}
		chunk := data[:n]
		data = data[n:]

		if c.cfg.DropRate > 0 && rng.Float64() < c.cfg.DropRate {
			stats.addDropped()
			c.sleepLatency(rng)
			continue
		}

		c.sleepLatency(rng)
		result := c.sendThrottled(dst, chunk, throttle, stats)
		if result == PipeClosed || result == PipeError {
			return result
		}

		if c.cfg.DupRate > 0 && rng.Float64() < c.cfg.DupRate {
			time.Sleep(time.Duration(rng.Intn(c.cfg.JitterMs+1)) * time.Millisecond)
			if dupResult := c.sendThrottled(dst, chunk, throttle, stats); dupResult == PipeSuccess {
				stats.addDuplicated()
			}
		}
	}
	return PipeSuccess
}

// sleepLatency sleeps latency_ms +/- jitter_ms, clamped to
// [0, max_latency_ms].
func (c *Connection) sleepLatency(rng *rand.Rand) {
	if c.cfg.LatencyMs == 0 && c.cfg.JitterMs == 0 {
		return
	}
	delay := c.cfg.LatencyMs
	if c.cfg.JitterMs > 0 {
		delay += rng.Intn(2*c.cfg.JitterMs+1) - c.cfg.JitterMs
	}
	if delay < 0 {
		delay = 0
	}
	if delay > c.cfg.MaxLatencyMs {
		delay = c.cfg.MaxLatencyMs
	}
	if delay > 0 {
		time.Sleep(time.Duration(delay) * time.Millisecond)
	}
}

// sendThrottled writes data to dst in throttle-sized chunks, consuming
// tokens only after each chunk succeeds, and retrying on a write
// timeout exactly as the original loops over EAGAIN with POLLOUT.
func (c *Connection) sendThrottled(dst net.Conn, data []byte, throttle *Throttle, stats *DirectionStats) PipeResult {
	for len(data) > 0 {
		if c.stopped() {
			return PipeClosed
		}
		allowance := throttle.Allowance(len(data))
		if allowance <= 0 {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		n := allowance
		if n > len(data) {
			n = len(data)
		}
		result, sent := safeSend(dst, data[:n], time.Duration(c.cfg.SocketTimeoutSec)*time.Second)
		if sent > 0 {
			throttle.Consume(sent)
			stats.addBytes(sent)
		}
		if result != PipeSuccess {
			return result
		}
		data = data[sent:]
	}
	return PipeSuccess
}

// safeSend loops over write timeouts (the net.Conn analogue of EAGAIN +
// POLLOUT) until data is fully written, the overall deadline elapses, or
// the connection errors/closes.
func safeSend(dst net.Conn, data []byte, timeout time.Duration) (PipeResult, int) {
	deadline := time.Now().Add(timeout)
	total := 0
	for total < len(data) {
		dst.SetWriteDeadline(time.Now().Add(pollTimeout))
		n, err := dst.Write(data[total:])
		total += n
		if err == nil {
			continue
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			if time.Now().After(deadline) {
				return PipeWouldBlock, total
			}
			continue
		}
		if err == io.EOF {
			return PipeClosed, total
		}
		return PipeError, total
	}
	return PipeSuccess, total
}

// halfCloseWrite shuts down the write half of conn immediately, used
// when a direction is disabled entirely rather than impaired.
func halfCloseWrite(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite()
	}
}

// rstClose forces a linger-zero RST close, used for
// RSTOnMidstreamErrors/RSTOnUpstreamConnectFail teardown paths.
func rstClose(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetLinger(0)
	}
	conn.Close()
}

// Stats returns a point-in-time snapshot of both directions' counters.
func (c *Connection) Stats() ConnectionStats {
	return ConnectionStats{
		ID:         c.id,
		RemoteAddr: c.client.RemoteAddr().String(),
		Up:         c.upStats.snapshot(),
		Down:       c.downStats.snapshot(),
		OpenedAt:   c.openedAt,
	}
}
