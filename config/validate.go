package config

import (
	"encoding/hex"
	"fmt"
	"net"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.NodeID != "" {
		b, err := hex.DecodeString(cfg.NodeID)
		if err != nil {
			return fmt.Errorf("node.id must be hex: %w", err)
		}
		if len(b) != 32 {
			return fmt.Errorf("node.id must be 32 bytes, got %d", len(b))
		}
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.Mesh.ListenAddr); err != nil {
		return fmt.Errorf("mesh.listen %q: %w", cfg.Mesh.ListenAddr, err)
	}

	switch cfg.Mesh.Protocol {
	case "flooding", "gossip", "consensus":
	default:
		return fmt.Errorf("mesh.protocol must be flooding, gossip, or consensus")
	}

	if cfg.Mesh.MaxPeers <= 0 {
		return fmt.Errorf("mesh.maxpeers must be positive")
	}
	if cfg.Mesh.HeartbeatInterval <= 0 {
		return fmt.Errorf("mesh.heartbeat must be positive")
	}
	if cfg.Mesh.GossipFanout <= 0 || cfg.Mesh.GossipRounds <= 0 {
		return fmt.Errorf("mesh.fanout and mesh.rounds must be positive")
	}

	if addr, err := net.ResolveUDPAddr("udp4", cfg.Mesh.DiscoveryGroup); err != nil {
		return fmt.Errorf("mesh.discovery %q: %w", cfg.Mesh.DiscoveryGroup, err)
	} else if !addr.IP.IsMulticast() {
		return fmt.Errorf("mesh.discovery %q is not a multicast address", cfg.Mesh.DiscoveryGroup)
	}

	switch cfg.Mesh.CipherSuite {
	case "aes-256-gcm", "chacha20-poly1305":
	default:
		return fmt.Errorf("mesh.cipher must be aes-256-gcm or chacha20-poly1305")
	}

	if cfg.Mesh.MasterKey != "" {
		if _, err := hex.DecodeString(cfg.Mesh.MasterKey); err != nil {
			return fmt.Errorf("mesh.masterkey must be hex: %w", err)
		}
	}

	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}

	return nil
}
