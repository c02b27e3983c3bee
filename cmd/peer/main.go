package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/keato/chainpeer/internal/config"
	"github.com/keato/chainpeer/internal/discovery"
	"github.com/keato/chainpeer/internal/logger"
	"github.com/keato/chainpeer/internal/metrics"
	"github.com/keato/chainpeer/internal/session"
	"github.com/keato/chainpeer/internal/store"
	peersync "github.com/keato/chainpeer/internal/sync"
	"github.com/keato/chainpeer/internal/wire"
)

func main() {
	cfg, err := config.Load("config.json")
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.LogJSON {
		logger.SetJSONOutput()
	}
	if cfg.LogDebug {
		logger.SetDebugLevel()
	}

	params, ok := wire.ParamsByName(cfg.Network)
	if !ok {
		logger.Log.Fatal().Str("network", cfg.Network).Msg("unknown network")
	}
	logger.Log.Info().Str("network", params.Name).Msg("=== chainpeer ===")

	db, err := store.NewFromConfig(&cfg.DB)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.Migrate(); err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to migrate header store")
	}
	logger.Log.Info().Msg("connected to header store")

	ctx, cancel := context.WithCancel(context.Background())

	metrics.SeedFromStore(ctx, db)
	metrics.StartMetricsServer(cfg.MetricsAddr)
	logger.Log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server started")

	addr := cfg.SeedAddr
	if addr == "" {
		pool := discovery.NewPool()
		if err := discovery.Bootstrap(ctx, pool, logger.Log); err != nil {
			logger.Log.Fatal().Err(err).Msg("bootstrap discovery failed")
		}
		node, ok := pool.Next()
		if !ok {
			logger.Log.Fatal().Msg("no usable peer in discovered pool")
		}
		addr = node.Addr()
	}

	var wg sync.WaitGroup
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("addr", addr).Msg("failed to dial peer")
	}
	metrics.PeerConnections.Inc()

	peerLog := logger.PeerLogger(params.Name, addr)
	controller := peersync.New(db, params.Name, peerLog)
	s := session.New(conn, params, controller.Callbacks(), peerLog)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Run(); err != nil {
			metrics.PeerDisconnections.Inc()
			peerLog.Warn().Err(err).Msg("session ended")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")

	cancel()
	s.Conn().Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info().Msg("session closed gracefully")
	case <-time.After(10 * time.Second):
		logger.Log.Warn().Msg("shutdown timeout - forcing exit")
	}

	if err := db.Close(); err != nil {
		logger.Log.Error().Err(err).Msg("error closing header store")
	}
	logger.Log.Info().Msg("shutdown complete")
}
