package feed

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"marketforge/core"
	"marketforge/logger"
)

// CSVSource reads line-oriented "price,amount,timestamp" records from a
// file. A line is rejected (counted as an anomaly) if it contains any
// byte outside the ASCII-printable range, has the wrong field count, has
// an unparseable or non-finite or non-positive number, or has a
// timestamp that is not strictly greater than the previous accepted
// timestamp in this run.
type CSVSource struct {
	StatusMachine
	filename  string
	tickDelay time.Duration
	telemetry *Telemetry
	hashLog   *HashLogger
	log       *logger.Entry
	anomalies *anomalyLogger

	stop    chan struct{}
	lastTS  int64
}

// NewCSVSource constructs a CSV feed source over filename, sleeping
// tickDelay between lines (0 disables the throttle — useful for tests
// replaying a fixture at full speed).
func NewCSVSource(filename string, tickDelay time.Duration, hashLog *HashLogger, log *logger.Log) *CSVSource {
	entry := log.WithComponent("feed-csv")
	return &CSVSource{
		filename:  filename,
		tickDelay: tickDelay,
		telemetry: NewTelemetry(),
		hashLog:   hashLog,
		log:       entry,
		anomalies: newAnomalyLogger(entry),
		stop:      make(chan struct{}),
	}
}

func (s *CSVSource) SourceTag() string { return "SRC_CSV_" + s.filename }

func (s *CSVSource) HasTelemetry() bool    { return true }
func (s *CSVSource) Telemetry() *Telemetry { return s.telemetry }

func (s *CSVSource) ResetStream() error {
	s.lastTS = 0
	return nil
}

func (s *CSVSource) ResetForRestart() {
	s.StatusMachine.ResetForRestart()
	s.stop = make(chan struct{})
	s.lastTS = 0
}

func (s *CSVSource) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Run executes the blocking read loop. It terminates on EOF or Stop,
// never on a malformed line.
func (s *CSVSource) Run(enqueue func(core.Order, core.AuthFlags)) {
	start := time.Now()
	file, err := os.Open(s.filename)
	if err != nil {
		s.log.WithError(err).WithFields(logger.Fields{"file": s.filename}).Error("failed to open CSV file")
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var accepted int64

	for scanner.Scan() {
		select {
		case <-s.stop:
			return
		default:
		}

		line := scanner.Text()
		if s.tickDelay > 0 {
			time.Sleep(s.tickDelay)
		}

		order, ok := s.parseLine(line)
		if !ok {
			s.telemetry.Anomalies.Add(1)
			s.anomalies.logf("rejected malformed CSV line", logger.Fields{"line": line})
			continue
		}

		if order.Timestamp <= s.lastTS {
			s.telemetry.Anomalies.Add(1)
			s.anomalies.logf("rejected non-monotonic timestamp", logger.Fields{"timestamp": order.Timestamp, "last": s.lastTS})
			continue
		}
		s.lastTS = order.Timestamp

		if s.hashLog != nil {
			originalHash := ComputeSHA256(line)
			parsedHash := ComputeSHA256(order.CanonicalCSV())
			if parsedHash != originalHash {
				s.hashLog.LogAnomaly(s.SourceTag(), originalHash, parsedHash)
			} else {
				s.hashLog.LogPacket(s.SourceTag(), line, originalHash)
			}
		}

		enqueue(order, core.Trusted)
		s.telemetry.OrdersReceived.Add(1)
		accepted++
	}

	duration := time.Since(start)
	s.telemetry.Stamina.SuccessfulRestarts.Add(1)
	s.telemetry.Stamina.RecoveryLatencyMs.Store(duration.Milliseconds())
	if duration > 0 {
		rate := accepted * 1000 / int64(duration.Milliseconds()+1)
		s.telemetry.Stamina.LiveProcessingRate.Store(rate)
	}
}

func (s *CSVSource) parseLine(line string) (core.Order, bool) {
	for _, b := range []byte(line) {
		if b < 32 || b > 126 {
			return core.Order{}, false
		}
	}

	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return core.Order{}, false
	}

	price, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Order{}, false
	}
	amount, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Order{}, false
	}
	ts, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return core.Order{}, false
	}
	if price <= 0 || amount <= 0 {
		return core.Order{}, false
	}

	order, err := core.NewOrder(price, amount, ts)
	if err != nil {
		return core.Order{}, false
	}
	return order, true
}
