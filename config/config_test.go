package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Mesh.ListenAddr != "0.0.0.0:0" {
		t.Errorf("listen addr = %q", cfg.Mesh.ListenAddr)
	}
	if cfg.Mesh.Protocol != "gossip" {
		t.Errorf("protocol = %q, want gossip", cfg.Mesh.Protocol)
	}
	if cfg.Mesh.MaxPeers != 100 {
		t.Errorf("max peers = %d, want 100", cfg.Mesh.MaxPeers)
	}
	if cfg.Mesh.HeartbeatInterval != 30 {
		t.Errorf("heartbeat = %d, want 30", cfg.Mesh.HeartbeatInterval)
	}
	if !cfg.Mesh.EnableEncryption {
		t.Error("encryption disabled by default")
	}
	if cfg.Mesh.EnableCompression {
		t.Error("compression enabled by default")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	breakCfg := []struct {
		name  string
		mutir func(*Config)
	}{
		{"bad protocol", func(c *Config) { c.Mesh.Protocol = "telepathy" }},
		{"zero max peers", func(c *Config) { c.Mesh.MaxPeers = 0 }},
		{"zero heartbeat", func(c *Config) { c.Mesh.HeartbeatInterval = 0 }},
		{"zero fanout", func(c *Config) { c.Mesh.GossipFanout = 0 }},
		{"bad listen", func(c *Config) { c.Mesh.ListenAddr = "nope" }},
		{"unicast discovery group", func(c *Config) { c.Mesh.DiscoveryGroup = "10.0.0.1:9999" }},
		{"bad cipher", func(c *Config) { c.Mesh.CipherSuite = "rot13" }},
		{"short node id", func(c *Config) { c.NodeID = "abcd" }},
		{"non-hex master key", func(c *Config) { c.Mesh.MasterKey = "zz" }},
		{"bad rpc port", func(c *Config) { c.RPC.Port = 70000 }},
	}
	for _, tc := range breakCfg {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutir(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mesh.conf")
	content := `# mesh node settings
mesh.listen = "127.0.0.1:7100"
mesh.protocol = flooding
mesh.maxpeers = 10
mesh.encryption = false
log.level = debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	cfg := Default()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	if cfg.Mesh.ListenAddr != "127.0.0.1:7100" {
		t.Errorf("listen = %q", cfg.Mesh.ListenAddr)
	}
	if cfg.Mesh.Protocol != "flooding" {
		t.Errorf("protocol = %q", cfg.Mesh.Protocol)
	}
	if cfg.Mesh.MaxPeers != 10 {
		t.Errorf("max peers = %d", cfg.Mesh.MaxPeers)
	}
	if cfg.Mesh.EnableEncryption {
		t.Error("encryption not disabled by file")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("missing file produced %d values", len(values))
	}
}

func TestApplyFileConfig_UnknownKey(t *testing.T) {
	cfg := Default()
	err := ApplyFileConfig(cfg, map[string]string{"mesh.warp": "9"})
	if err == nil {
		t.Error("unknown key accepted")
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()
	f := &Flags{
		ListenAddr:       "127.0.0.1:7200",
		Protocol:         "consensus",
		MaxPeers:         7,
		EnableEncryption: false,
		SetEncryption:    true,
	}
	ApplyFlags(cfg, f)

	if cfg.Mesh.ListenAddr != "127.0.0.1:7200" {
		t.Errorf("listen = %q", cfg.Mesh.ListenAddr)
	}
	if cfg.Mesh.Protocol != "consensus" {
		t.Errorf("protocol = %q", cfg.Mesh.Protocol)
	}
	if cfg.Mesh.MaxPeers != 7 {
		t.Errorf("max peers = %d", cfg.Mesh.MaxPeers)
	}
	if cfg.Mesh.EnableEncryption {
		t.Error("explicit --enable-encryption=false ignored")
	}
}
