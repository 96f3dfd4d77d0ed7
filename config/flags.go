package config

import (
	"flag"
	"fmt"
	"os"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Config  string
	DataDir string
	NodeID  string

	// Mesh
	ListenAddr       string
	Protocol         string
	MaxPeers         int
	Heartbeat        int
	Fanout           int
	Rounds           int
	DiscoveryGroup   string
	EnableEncryption bool
	Compression      bool
	CipherSuite      string
	MasterKey        string

	// RPC
	RPC     bool
	RPCAddr string
	RPCPort int

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Explicitly-set bool flags (for true/false overrides).
	SetEncryption  bool
	SetCompression bool
	SetRPC         bool
	SetLogJSON     bool
}

// ParseFlags parses command-line flags.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("meshd", flag.ContinueOnError)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	// Core
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")
	fs.StringVar(&f.DataDir, "data-dir", "", "Data directory for peer persistence (empty = memory only)")
	fs.StringVar(&f.NodeID, "node-id", "", "Node ID (hex string, auto-generated if not provided)")

	// Mesh
	fs.StringVar(&f.ListenAddr, "listen-addr", "", "Listen address (default: 0.0.0.0:0)")
	fs.StringVar(&f.Protocol, "protocol", "", "Protocol to use: flooding, gossip, consensus (default: gossip)")
	fs.IntVar(&f.MaxPeers, "max-peers", 0, "Maximum number of peers (default: 100)")
	fs.IntVar(&f.Heartbeat, "heartbeat", 0, "Heartbeat interval in seconds (default: 30)")
	fs.IntVar(&f.Fanout, "fanout", 0, "Gossip fanout (default: 3)")
	fs.IntVar(&f.Rounds, "rounds", 0, "Gossip rounds (default: 3)")
	fs.StringVar(&f.DiscoveryGroup, "discovery-group", "", "Multicast discovery group (default: 224.0.0.1:9999)")
	fs.BoolVar(&f.EnableEncryption, "enable-encryption", false, "Enable message encryption")
	fs.BoolVar(&f.Compression, "enable-compression", false, "Enable zstd frame compression")
	fs.StringVar(&f.CipherSuite, "cipher", "", "Cipher suite: aes-256-gcm or chacha20-poly1305")
	fs.StringVar(&f.MasterKey, "master-key", "", "Master key hex for key derivation")

	// RPC
	fs.BoolVar(&f.RPC, "rpc", true, "Enable RPC control server")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	// Custom usage
	fs.Usage = func() {
		printUsage()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	// Track explicitly-set booleans so false can override a true default.
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "enable-encryption":
			f.SetEncryption = true
		case "enable-compression":
			f.SetCompression = true
		case "rpc":
			f.SetRPC = true
		case "log-json":
			f.SetLogJSON = true
		}
	})

	return f
}

// ApplyFlags applies command-line flags to a Config (highest precedence).
func ApplyFlags(cfg *Config, f *Flags) {
	if f.NodeID != "" {
		cfg.NodeID = f.NodeID
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.ListenAddr != "" {
		cfg.Mesh.ListenAddr = f.ListenAddr
	}
	if f.Protocol != "" {
		cfg.Mesh.Protocol = f.Protocol
	}
	if f.MaxPeers > 0 {
		cfg.Mesh.MaxPeers = f.MaxPeers
	}
	if f.Heartbeat > 0 {
		cfg.Mesh.HeartbeatInterval = f.Heartbeat
	}
	if f.Fanout > 0 {
		cfg.Mesh.GossipFanout = f.Fanout
	}
	if f.Rounds > 0 {
		cfg.Mesh.GossipRounds = f.Rounds
	}
	if f.DiscoveryGroup != "" {
		cfg.Mesh.DiscoveryGroup = f.DiscoveryGroup
	}
	if f.SetEncryption {
		cfg.Mesh.EnableEncryption = f.EnableEncryption
	}
	if f.SetCompression {
		cfg.Mesh.EnableCompression = f.Compression
	}
	if f.CipherSuite != "" {
		cfg.Mesh.CipherSuite = f.CipherSuite
	}
	if f.MasterKey != "" {
		cfg.Mesh.MasterKey = f.MasterKey
	}
	if f.SetRPC {
		cfg.RPC.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort > 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// Load builds the effective configuration: defaults → config file → flags.
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	// Handle help/version
	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("meshd version 0.1.0")
		os.Exit(0)
	}

	cfg := Default()

	if flags.Config != "" {
		fileValues, err := LoadFile(flags.Config)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config file: %w", err)
		}
		if err := ApplyFileConfig(cfg, fileValues); err != nil {
			return nil, nil, fmt.Errorf("applying config file: %w", err)
		}
	}

	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: meshd [flags]

Mesh node daemon. Runs until SIGINT, then prints final stats.

Flags:
  --listen-addr <ip:port>   Listen address for stream + datagram paths (default: 0.0.0.0:0)
  --protocol <name>         flooding, gossip, or consensus (default: gossip)
  --max-peers <n>           Connected-peer cap (default: 100)
  --heartbeat <seconds>     Heartbeat interval (default: 30)
  --fanout <n>              Gossip fanout (default: 3)
  --rounds <n>              Gossip rounds (default: 3)
  --discovery-group <addr>  Multicast discovery group (default: 224.0.0.1:9999)
  --enable-encryption       Seal payloads with the mesh cipher
  --enable-compression      zstd-compress wire frames
  --cipher <suite>          aes-256-gcm (default) or chacha20-poly1305
  --master-key <hex>        Master key for key derivation (default: random)
  --node-id <hex>           Node ID (auto-generated if not provided)
  --data-dir <path>         Persist peers under this directory
  --rpc / --rpc=false       Enable the JSON-RPC control server (default: on)
  --rpc-addr <ip>           RPC listen address (default: 127.0.0.1)
  --rpc-port <port>         RPC listen port (default: 7470)
  --config <path>           Config file (key = value lines)
  --log-level <level>       debug, info, warn, error (default: info)
  --log-file <path>         Also write JSON logs to this file
  --log-json                Console logs as JSON
`)
}
