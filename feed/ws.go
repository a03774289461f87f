package feed

import (
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"

	"marketforge/core"
	"marketforge/logger"
)

// wsPayload is the inline-JSON shape read off each websocket text frame.
type wsPayload struct {
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"`
}

// WebsocketSource dials an upstream exchange-style websocket endpoint
// and treats each text frame as one order record. Reconnects on read
// failure with a fixed backoff rather than giving up the source.
type WebsocketSource struct {
	StatusMachine
	url         string
	telemetry   *Telemetry
	log         *logger.Entry
	stop        chan struct{}
	reconnectAt time.Duration
}

// NewWebsocketSource constructs a websocket feed source dialing rawURL.
func NewWebsocketSource(rawURL string, log *logger.Log) *WebsocketSource {
	return &WebsocketSource{
		url:         rawURL,
		telemetry:   NewTelemetry(),
		log:         log.WithComponent("feed-websocket"),
		stop:        make(chan struct{}),
		reconnectAt: 2 * time.Second,
	}
}

func (s *WebsocketSource) SourceTag() string { return "SRC_WS_" + s.url }

func (s *WebsocketSource) HasTelemetry() bool    { return true }
func (s *WebsocketSource) Telemetry() *Telemetry { return s.telemetry }

func (s *WebsocketSource) ResetStream() error { return nil }

func (s *WebsocketSource) ResetForRestart() {
	s.StatusMachine.ResetForRestart()
	s.stop = make(chan struct{})
}

func (s *WebsocketSource) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Run dials the endpoint and reads frames until Stop is called,
// reconnecting after read/dial failures rather than exiting.
func (s *WebsocketSource) Run(enqueue func(core.Order, core.AuthFlags)) {
	if _, err := url.Parse(s.url); err != nil {
		s.log.WithError(err).WithFields(logger.Fields{"url": s.url}).Error("invalid websocket url")
		return
	}

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
		if err != nil {
			s.log.WithError(err).WithFields(logger.Fields{"url": s.url}).Warn("websocket dial failed")
			if s.sleepOrStop(s.reconnectAt) {
				return
			}
			continue
		}

		s.readLoop(conn, enqueue)
		conn.Close()

		select {
		case <-s.stop:
			return
		default:
		}
		if s.sleepOrStop(s.reconnectAt) {
			return
		}
	}
}

func (s *WebsocketSource) readLoop(conn *websocket.Conn, enqueue func(core.Order, core.AuthFlags)) {
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				continue
			}
			s.log.WithError(err).Warn("websocket read error")
			return
		}

		s.processFrame(message, enqueue)
	}
}

func (s *WebsocketSource) processFrame(message []byte, enqueue func(core.Order, core.AuthFlags)) {
	var payload wsPayload
	if err := sonnet.Unmarshal(message, &payload); err != nil {
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

// sleepOrStop waits d unless Stop fires first; returns true if Stop won.
func (s *WebsocketSource) sleepOrStop(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.stop:
		return true
	case <-timer.C:
		return false
	}
}
