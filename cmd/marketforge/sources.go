package main

import (
	"fmt"
	"time"

	"marketforge/arena"
	"marketforge/config"
	"marketforge/feed"
	"marketforge/logger"
	"marketforge/orderbook"
)

// buildSource constructs the concrete feed.Source named by srcCfg.Type,
// wiring in the shared integrity hash logger where the source supports
// one.
func buildSource(srcCfg config.FeedSourceConfig, hashLog *feed.HashLogger, log *logger.Log) (feed.Source, error) {
	switch srcCfg.Type {
	case "csv":
		tickDelay := time.Duration(srcCfg.CSV.TickDelayMs) * time.Millisecond
		return feed.NewCSVSource(srcCfg.CSV.Filename, tickDelay, hashLog, log), nil
	case "shm":
		return feed.NewShmSource(srcCfg.SHM.Path, srcCfg.SHM.Capacity, hashLog, log)
	case "socket":
		return feed.NewSocketSource(srcCfg.Socket.ListenAddr, log), nil
	case "injector":
		return feed.NewInjectorSource(srcCfg.Injector.Filename, hashLog, log), nil
	case "ws":
		return feed.NewWebsocketSource(srcCfg.WS.URL, log), nil
	default:
		return nil, fmt.Errorf("unknown feed source type %q", srcCfg.Type)
	}
}

// newArenaBook constructs an arena-backed order book sized for
// capacity orders, backed by an arena of arenaBytes.
func newArenaBook(arenaBytes, capacity int) (*orderbook.Book, error) {
	a := arena.New(arenaBytes)
	return orderbook.NewArena(a, capacity), nil
}
