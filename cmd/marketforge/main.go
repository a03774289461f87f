// Command marketforge is the ingestion engine entrypoint: it wires the
// configured feed sources into the FeedManager, drains their shared
// output queue into a CandlestickGenerator bound to an IndicatorRegistry
// and ThreadPool, and optionally streams telemetry and completed
// candlesticks to the dashboard's websocket endpoint. Shutdown follows
// the same signal-driven, ordered-stop pattern as the teacher's root
// main.go.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"marketforge/config"
	"marketforge/core"
	"marketforge/dashboard"
	"marketforge/engine"
	"marketforge/feed"
	"marketforge/logger"
	"marketforge/orderbook"
)

// queuedOrder pairs a parsed order with its provenance tag as it moves
// from a feed source into the shared queue ahead of aggregation.
type queuedOrder struct {
	order core.Order
	auth  core.AuthFlags
}

func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("failed to configure logger")
		os.Exit(1)
	}

	if cfg.Logging.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Logging.CloudWatch.Region, cfg.Logging.CloudWatch.Namespace, cfg.Logging.CloudWatch.Dashboard)
	}

	log.WithFields(logger.Fields{
		"service": cfg.MarketForge.Name,
		"version": cfg.MarketForge.Version,
	}).Info("starting marketforge")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	var hashLog *feed.HashLogger
	if cfg.Feed.HashLogPath != "" {
		hashLog, err = feed.NewHashLogger(cfg.Feed.HashLogPath)
		if err != nil {
			log.WithError(err).Error("failed to open integrity log")
			os.Exit(1)
		}
		defer hashLog.Close()
	}

	manager := feed.NewManager(log)
	for _, srcCfg := range cfg.Feed.Sources {
		source, err := buildSource(srcCfg, hashLog, log)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"source": srcCfg.Name}).Error("failed to build feed source")
			os.Exit(1)
		}
		manager.AddSource(source)
	}

	registry := engine.NewIndicatorRegistry(log)
	registry.Register("sma", engine.NewSMAIndicator(20))
	registry.Register("rsi", engine.NewRSIIndicator(14))
	registry.Register("macd", engine.NewMACDIndicator(12, 26, 9))
	registry.Register("bollinger", engine.NewBollingerIndicator(20, 2, 2))

	pool := engine.NewThreadPool(cfg.Engine.ThreadPoolWorkers, cfg.Engine.ThreadPoolQueueCapacity, log)
	defer pool.Shutdown()

	var dash *dashboard.Server
	dispatch := func(core.Candlestick) {}
	if cfg.Dashboard.Enabled {
		dash = dashboard.NewServer(cfg.Dashboard.Address, log)
		if err := dash.Start(); err != nil {
			log.WithError(err).Error("failed to start dashboard server")
			os.Exit(1)
		}
		defer dash.Stop(context.Background())
		dispatch = dash.PublishCandle
	}

	generator := engine.NewCandleGenerator(cfg.Engine.WindowDurationSeconds, dispatch, registry, pool)

	var book *orderbook.Book
	if cfg.OrderBook.ArenaBytes > 0 && cfg.OrderBook.ArenaCapacity > 0 {
		book, err = newArenaBook(cfg.OrderBook.ArenaBytes, cfg.OrderBook.ArenaCapacity)
		if err != nil {
			log.WithError(err).Error("failed to construct arena order book")
			os.Exit(1)
		}
	} else {
		book = orderbook.NewFallback()
	}

	queue := make(chan queuedOrder, cfg.Feed.QueueCapacity)
	enqueue := func(o core.Order, auth core.AuthFlags) {
		select {
		case queue <- queuedOrder{order: o, auth: auth}:
			logger.IncrementOrdersQueued()
			logger.RecordEvent("orders_enqueued", len(o.CanonicalCSV()))
		default:
			log.WithComponent("engine").Warn("order queue full, dropping order")
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumeQueue(ctx, queue, book, generator)
	}()

	if dash != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			streamTelemetry(ctx, manager, dash, 2*time.Second)
		}()
	}

	if err := manager.StartAll(enqueue, cfg.Feed.UniqueTags); err != nil {
		log.WithError(err).Error("failed to start feed sources")
		os.Exit(1)
	}

	log.Info("marketforge started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	cancel()
	if err := manager.StopAll(); err != nil {
		log.WithError(err).Warn("feed manager shutdown did not complete cleanly")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("marketforge stopped")
}

// consumeQueue drains parsed orders into the order book and the
// candlestick generator, flushing the generator whenever the most
// recently seen timestamp advances past the current window.
func consumeQueue(ctx context.Context, queue <-chan queuedOrder, book *orderbook.Book, generator *engine.CandleGenerator) {
	log := logger.GetLogger().WithComponent("consumer")
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-queue:
			if !ok {
				return
			}
			book.Insert(q.order)
			generator.Insert(q.order)
			if _, flushed, err := generator.FlushIfReady(q.order.Timestamp); err != nil {
				log.WithError(err).Warn("candle flush failed")
			} else if flushed {
				log.Debug("candle flushed")
			}
		}
	}
}

// streamTelemetry periodically publishes every feed source's telemetry
// snapshot to the dashboard.
func streamTelemetry(ctx context.Context, manager *feed.Manager, dash *dashboard.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dash.PublishTelemetry(manager.Snapshots())
		}
	}
}
