// Command proxy is the TCP latency-impairment proxy: it accepts client
// connections, forwards them to a configured upstream, and injects
// latency, jitter, drop, duplication, and bandwidth throttling per
// connection. Flags follow the same flat, documented set the teacher's
// own CLI tools expose.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marketforge/logger"
	"marketforge/proxy"
)

func main() {
	cfg := proxy.DefaultConfig()

	flag.StringVar(&cfg.ListenHost, "listen-host", cfg.ListenHost, "address to listen on")
	flag.IntVar(&cfg.ListenPort, "listen-port", cfg.ListenPort, "port to listen on")
	flag.StringVar(&cfg.UpstreamHost, "upstream-host", cfg.UpstreamHost, "upstream host to forward to")
	flag.IntVar(&cfg.UpstreamPort, "upstream-port", cfg.UpstreamPort, "upstream port to forward to")

	flag.IntVar(&cfg.LatencyMs, "latency-ms", cfg.LatencyMs, "base one-way latency to inject, in milliseconds")
	flag.IntVar(&cfg.JitterMs, "jitter-ms", cfg.JitterMs, "latency jitter applied symmetrically around latency-ms")
	flag.Float64Var(&cfg.DropRate, "drop-rate", cfg.DropRate, "fraction of chunks to silently drop, in [0, 1]")
	flag.Float64Var(&cfg.DupRate, "dup-rate", cfg.DupRate, "fraction of chunks to duplicate, in [0, 1]")
	flag.IntVar(&cfg.MaxLatencyMs, "max-latency-ms", cfg.MaxLatencyMs, "upper bound clamp on injected latency")

	flag.IntVar(&cfg.BandwidthKbps, "bandwidth-kbps", cfg.BandwidthKbps, "per-direction bandwidth cap in kbps (0 disables)")
	flag.IntVar(&cfg.BufferBytes, "buffer-bytes", cfg.BufferBytes, "per-direction read buffer size, rounded up to a power of two in [1KiB, 1MiB]")
	flag.BoolVar(&cfg.EnableBurst, "enable-burst", cfg.EnableBurst, "allow bursting up to burst-seconds of accumulated tokens")
	flag.IntVar(&cfg.BurstSeconds, "burst-seconds", cfg.BurstSeconds, "burst window in seconds when enable-burst is set")

	direction := flag.String("direction", string(cfg.Direction), "forwarding direction: up, down, or both")
	flag.IntVar(&cfg.MaxConns, "max-connections", cfg.MaxConns, "maximum concurrent connections")
	flag.BoolVar(&cfg.HalfClose, "half-close", cfg.HalfClose, "half-close the write side of a disabled forwarding direction")
	flag.IntVar(&cfg.ConnectTimeoutSec, "connect-timeout-sec", cfg.ConnectTimeoutSec, "upstream dial timeout in seconds, [1, 300]")
	flag.IntVar(&cfg.SocketTimeoutSec, "socket-timeout-sec", cfg.SocketTimeoutSec, "per-write socket timeout in seconds")
	flag.IntVar(&cfg.IdleTimeoutSec, "idle-timeout-sec", cfg.IdleTimeoutSec, "idle connection timeout in seconds, [10, 3600]")

	flag.BoolVar(&cfg.HTTPFriendlyErrors, "http-friendly-errors", cfg.HTTPFriendlyErrors, "reply with HTTP 429/503 instead of a bare close when the client looks like HTTP")
	flag.BoolVar(&cfg.RSTOnUpstreamConnectFail, "rst-on-upstream-connect-fail", cfg.RSTOnUpstreamConnectFail, "send RST instead of a graceful close on upstream dial failure")
	flag.BoolVar(&cfg.RSTOnMidstreamErrors, "rst-on-midstream-errors", cfg.RSTOnMidstreamErrors, "send RST instead of a graceful close on a midstream teardown")

	flag.BoolVar(&cfg.V6Only, "v6-only", cfg.V6Only, "bind an IPv6-only listener")
	flag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable debug-level logging")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "RNG seed for reproducible impairment decisions (0 derives from time and connection identity)")

	flag.Parse()

	cfg.Direction = proxy.Direction(*direction)

	log := logger.GetLogger()
	level := "info"
	if cfg.Verbose {
		level = "debug"
	}
	if err := log.Configure(level, "json", "stdout", 0); err != nil {
		fmt.Fprintln(os.Stderr, "failed to configure logger:", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	listener, err := proxy.NewListener(cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to bind listener")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- listener.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("listener exited unexpectedly")
		}
	}

	cancel()
	if err := listener.Close(); err != nil {
		log.WithError(err).Warn("listener close did not complete cleanly")
	}

	log.Info("proxy stopped")
}
