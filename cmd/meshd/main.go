// Mesh node daemon.
//
// Usage:
//
//	meshd [--listen-addr ip:port --protocol gossip ...]  Run node
//	meshd --help                                         Show help
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/klingnet-mesh/config"
	klog "github.com/Klingon-tech/klingnet-mesh/internal/log"
	"github.com/Klingon-tech/klingnet-mesh/internal/node"
	"github.com/Klingon-tech/klingnet-mesh/internal/rpc"
)

func main() {
	// ── 1. Load config (defaults → file → flags) ────────────────────────
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Init logger ──────────────────────────────────────────────────
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("meshd")

	// ── 3. Create node ──────────────────────────────────────────────────
	n, err := node.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create node")
	}

	logger.Info().
		Str("node_id", n.NodeID().Short()).
		Str("listen", cfg.Mesh.ListenAddr).
		Str("protocol", cfg.Mesh.Protocol).
		Int("max_peers", cfg.Mesh.MaxPeers).
		Bool("encryption", cfg.Mesh.EnableEncryption).
		Msg("Starting mesh node")

	// ── 4. Start node ───────────────────────────────────────────────────
	if err := n.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start node")
	}
	logger.Info().Str("addr", n.Addr()).Msg("Node listening")

	// ── 5. Start RPC control server ─────────────────────────────────────
	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		rpcServer = rpc.New(fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port), n)
		if err := rpcServer.Start(); err != nil {
			n.Stop()
			logger.Fatal().Err(err).Msg("Failed to start RPC server")
		}
		logger.Info().Str("addr", rpcServer.Addr()).Msg("RPC server listening")
	}

	// ── 6. Block until SIGINT/SIGTERM ───────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	// ── 7. Shutdown and print final stats ───────────────────────────────
	stats := n.Stats()

	if rpcServer != nil {
		if err := rpcServer.Stop(); err != nil {
			logger.Warn().Err(err).Msg("RPC shutdown error")
		}
	}
	if err := n.Stop(); err != nil {
		logger.Warn().Err(err).Msg("Node shutdown error")
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err == nil {
		fmt.Printf("Final stats:\n%s\n", out)
	}
}
