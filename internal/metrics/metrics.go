// Package metrics exposes Prometheus counters/gauges/histograms covering
// handshake, sync, validator, and script-VM activity. The chain-height
// gauge is seeded from the header store on startup so it doesn't reset to
// zero across restarts; the counters start from zero on each run.
package metrics

import (
	"context"
	"log"
	"net/http"

	"github.com/keato/chainpeer/internal/chain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PeerConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainpeer_peer_connections_total",
		Help: "Total number of peer connection attempts",
	})

	PeerDisconnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainpeer_peer_disconnections_total",
		Help: "Total number of peer disconnections",
	})

	PeerHandshakeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainpeer_peer_handshake_failures_total",
		Help: "Total number of handshake failures",
	})

	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainpeer_frames_dropped_total",
		Help: "Frames dropped due to invalid checksum or unknown command",
	}, []string{"reason"})

	BlocksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainpeer_blocks_received_total",
		Help: "Total number of block messages received",
	})

	BlocksAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainpeer_blocks_accepted_total",
		Help: "Total number of blocks that passed validation and were appended",
	})

	BlocksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainpeer_blocks_rejected_total",
		Help: "Total number of blocks rejected by the validator, by reason",
	}, []string{"reason"})

	ChainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chainpeer_chain_height",
		Help: "Height of the locally stored chain tip",
	})

	InvBlockAnnouncements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainpeer_inv_block_announcements_total",
		Help: "Total block announcements received via inv messages",
	})

	ScriptExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainpeer_script_executions_total",
		Help: "Script VM invocations by outcome",
	}, []string{"outcome"})
)

// SeedFromStore initializes ChainHeight from the persisted tip so it
// doesn't reset to zero on restart.
func SeedFromStore(ctx context.Context, s chain.BlockStore) {
	tip, err := s.Latest(ctx)
	if err != nil {
		log.Printf("metrics: could not seed chain height: %v", err)
		return
	}
	ChainHeight.Set(float64(tip.Height))
}

func corsHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartMetricsServer starts the Prometheus metrics HTTP server in the
// background.
func StartMetricsServer(addr string) {
	http.Handle("/metrics", corsHandler(promhttp.Handler()))
	go http.ListenAndServe(addr, nil)
}
