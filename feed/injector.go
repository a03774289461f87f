package feed

import (
	"bufio"
	"os"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"marketforge/core"
	"marketforge/logger"
)

// injectorPayload is one line of an injection feed file: required
// price/amount/timestamp plus optional tag/auth/delay_ms.
type injectorPayload struct {
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"`
	Tag       string  `json:"tag,omitempty"`
	Auth      string  `json:"auth,omitempty"`
	DelayMs   int     `json:"delay_ms,omitempty"`
}

// InjectorSource reads a file of one-JSON-object-per-line payloads,
// honoring a per-record injected delay and verifying raw/parsed hash
// equality before enqueueing.
type InjectorSource struct {
	StatusMachine
	filename  string
	telemetry *Telemetry
	hashLog   *HashLogger
	log       *logger.Entry
	stop      chan struct{}
}

// NewInjectorSource constructs an injector source over filename.
func NewInjectorSource(filename string, hashLog *HashLogger, log *logger.Log) *InjectorSource {
	return &InjectorSource{
		filename:  filename,
		telemetry: NewTelemetry(),
		hashLog:   hashLog,
		log:       log.WithComponent("feed-injector"),
		stop:      make(chan struct{}),
	}
}

func (s *InjectorSource) SourceTag() string { return "SRC_INJECTOR" }

func (s *InjectorSource) HasTelemetry() bool    { return true }
func (s *InjectorSource) Telemetry() *Telemetry { return s.telemetry }

func (s *InjectorSource) ResetStream() error { return nil }

func (s *InjectorSource) ResetForRestart() {
	s.StatusMachine.ResetForRestart()
	s.stop = make(chan struct{})
}

func (s *InjectorSource) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Run executes the blocking injection loop.
func (s *InjectorSource) Run(enqueue func(core.Order, core.AuthFlags)) {
	file, err := os.Open(s.filename)
	if err != nil {
		s.log.WithError(err).WithFields(logger.Fields{"file": s.filename}).Error("failed to open injector file")
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		select {
		case <-s.stop:
			return
		default:
		}

		line := scanner.Text()
		order, authFlag, delay, tag, payload, ok := s.parseLine(line)
		if !ok {
			s.telemetry.Anomalies.Add(1)
			continue
		}

		if delay > 0 {
			time.Sleep(time.Duration(delay) * time.Millisecond)
		}

		if s.hashLog != nil {
			originalHash := ComputeSHA256(line)
			canonical, err := sonnet.Marshal(payload)
			parsedHash := ComputeSHA256(string(canonical))
			if err != nil || originalHash != parsedHash {
				s.hashLog.LogAnomaly(s.SourceTag(), originalHash, parsedHash)
			} else {
				s.hashLog.LogPacket(s.SourceTag(), line, originalHash)
			}
		}

		enqueue(order, authFlag)
		s.telemetry.OrdersReceived.Add(1)
		s.log.WithFields(logger.Fields{
			"tag":  tag,
			"auth": core.AuthFlagsString(authFlag),
		}).Debug("injected order")
	}
}

func (s *InjectorSource) parseLine(line string) (core.Order, core.AuthFlags, int, string, injectorPayload, bool) {
	var payload injectorPayload
	if err := sonnet.Unmarshal([]byte(line), &payload); err != nil {
		return core.Order{}, core.Malformed, 0, "", payload, false
	}

	authFlag := core.Trusted
	if payload.Auth != "" {
		parsed, err := core.ParseAuthFlags(payload.Auth)
		if err != nil {
			return core.Order{}, core.Malformed, 0, "", payload, false
		}
		authFlag = parsed
	}

	order, err := core.NewOrder(payload.Price, payload.Amount, payload.Timestamp)
	if err != nil {
		return core.Order{}, core.Malformed, 0, "", payload, false
	}

	return order, authFlag, payload.DelayMs, payload.Tag, payload, true
}
