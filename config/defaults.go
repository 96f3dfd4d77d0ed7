package config

// Default mesh parameters.
const (
	DefaultListenAddr        = "0.0.0.0:0"
	DefaultProtocol          = "gossip"
	DefaultMaxPeers          = 100
	DefaultHeartbeatInterval = 30
	DefaultGossipFanout      = 3
	DefaultGossipRounds      = 3
	DefaultDiscoveryGroup    = "224.0.0.1:9999"
	DefaultCipherSuite       = "aes-256-gcm"
	DefaultRPCAddr           = "127.0.0.1"
	DefaultRPCPort           = 7470
)

// Default returns the default node configuration.
func Default() *Config {
	return &Config{
		Mesh: MeshConfig{
			ListenAddr:        DefaultListenAddr,
			Protocol:          DefaultProtocol,
			MaxPeers:          DefaultMaxPeers,
			HeartbeatInterval: DefaultHeartbeatInterval,
			GossipFanout:      DefaultGossipFanout,
			GossipRounds:      DefaultGossipRounds,
			DiscoveryGroup:    DefaultDiscoveryGroup,
			EnableEncryption:  true,
			EnableCompression: false,
			CipherSuite:       DefaultCipherSuite,
		},
		RPC: RPCConfig{
			Enabled: true,
			Addr:    DefaultRPCAddr,
			Port:    DefaultRPCPort,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
